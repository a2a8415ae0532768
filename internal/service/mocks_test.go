package service

import (
	"context"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/repository"
)

// --- Mock repositories ---

// mockMediaRepo — мок MediaRepository для unit-тестов.
type mockMediaRepo struct {
	insertFn     func(ctx context.Context, rec *model.MediaRecord) error
	countFn      func(ctx context.Context, f repository.MediaFilter) (int64, error)
	findFn       func(ctx context.Context, f repository.MediaFilter, offset, limit int) ([]*model.MediaRecord, error)
	findAllFn    func(ctx context.Context, f repository.MediaFilter) ([]*model.MediaRecord, error)
	getByKeyFn   func(ctx context.Context, fileKey string) (*model.MediaRecord, error)
	deleteFn     func(ctx context.Context, fileKey string) error
	deleteManyFn func(ctx context.Context, fileKeys []string) (int64, error)
	totalFn      func(ctx context.Context) (int64, error)
}

func (m *mockMediaRepo) Insert(ctx context.Context, rec *model.MediaRecord) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, rec)
	}
	return nil
}

func (m *mockMediaRepo) Count(ctx context.Context, f repository.MediaFilter) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, f)
	}
	return 0, nil
}

func (m *mockMediaRepo) Find(ctx context.Context, f repository.MediaFilter, offset, limit int) ([]*model.MediaRecord, error) {
	if m.findFn != nil {
		return m.findFn(ctx, f, offset, limit)
	}
	return nil, nil
}

func (m *mockMediaRepo) FindAll(ctx context.Context, f repository.MediaFilter) ([]*model.MediaRecord, error) {
	if m.findAllFn != nil {
		return m.findAllFn(ctx, f)
	}
	return nil, nil
}

func (m *mockMediaRepo) GetByKey(ctx context.Context, fileKey string) (*model.MediaRecord, error) {
	if m.getByKeyFn != nil {
		return m.getByKeyFn(ctx, fileKey)
	}
	return nil, repository.ErrNotFound
}

func (m *mockMediaRepo) Delete(ctx context.Context, fileKey string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, fileKey)
	}
	return nil
}

func (m *mockMediaRepo) DeleteMany(ctx context.Context, fileKeys []string) (int64, error) {
	if m.deleteManyFn != nil {
		return m.deleteManyFn(ctx, fileKeys)
	}
	return int64(len(fileKeys)), nil
}

func (m *mockMediaRepo) Total(ctx context.Context) (int64, error) {
	if m.totalFn != nil {
		return m.totalFn(ctx)
	}
	return 0, nil
}

// mockSettingsRepo — мок SettingsRepository.
type mockSettingsRepo struct {
	getFn    func(ctx context.Context, chatID int64) (*model.ChatSettings, error)
	upsertFn func(ctx context.Context, s *model.ChatSettings) error
}

func (m *mockSettingsRepo) Get(ctx context.Context, chatID int64) (*model.ChatSettings, error) {
	if m.getFn != nil {
		return m.getFn(ctx, chatID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, s *model.ChatSettings) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return nil
}

// mockUserRepo — мок UserRepository.
type mockUserRepo struct {
	banned  []model.BannedUser
	addFn   func(ctx context.Context, userID int64, firstName string) (bool, error)
	banFn   func(ctx context.Context, userID int64, reason string) error
	unbanFn func(ctx context.Context, userID int64) error
	listErr error
	count   int64
}

func (m *mockUserRepo) Add(ctx context.Context, userID int64, firstName string) (bool, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, firstName)
	}
	return true, nil
}

func (m *mockUserRepo) Ban(ctx context.Context, userID int64, reason string) error {
	if m.banFn != nil {
		return m.banFn(ctx, userID, reason)
	}
	return nil
}

func (m *mockUserRepo) Unban(ctx context.Context, userID int64) error {
	if m.unbanFn != nil {
		return m.unbanFn(ctx, userID)
	}
	return nil
}

func (m *mockUserRepo) ListBanned(_ context.Context) ([]model.BannedUser, error) {
	return m.banned, m.listErr
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	return m.count, nil
}

// mockChatRepo — мок ChatRepository.
type mockChatRepo struct {
	disabled  []model.DisabledChat
	disableFn func(ctx context.Context, chatID int64, reason string) error
	enableFn  func(ctx context.Context, chatID int64) error
	listErr   error
	count     int64
}

func (m *mockChatRepo) Add(_ context.Context, _ int64, _ string) (bool, error) {
	return true, nil
}

func (m *mockChatRepo) Disable(ctx context.Context, chatID int64, reason string) error {
	if m.disableFn != nil {
		return m.disableFn(ctx, chatID, reason)
	}
	return nil
}

func (m *mockChatRepo) Enable(ctx context.Context, chatID int64) error {
	if m.enableFn != nil {
		return m.enableFn(ctx, chatID)
	}
	return nil
}

func (m *mockChatRepo) ListDisabled(_ context.Context) ([]model.DisabledChat, error) {
	return m.disabled, m.listErr
}

func (m *mockChatRepo) Count(_ context.Context) (int64, error) {
	return m.count, nil
}

// staticSettings — ChatSettingsProvider с фиксированным ответом.
type staticSettings struct {
	settings model.ChatSettings
	err      error
}

func (s staticSettings) Get(_ context.Context, chatID int64) (model.ChatSettings, error) {
	st := s.settings
	st.ChatID = chatID
	return st, s.err
}
