// banlist.go — списки заблокированных пользователей и отключённых чатов.
// Списки загружаются из PostgreSQL при старте и хранятся в памяти;
// изменения записываются в БД и затем применяются к копии в памяти.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bigkaa/tgmedia-indexer/internal/repository"
)

// BanList — in-memory кэш блокировок с записью в PostgreSQL.
type BanList struct {
	users  repository.UserRepository
	chats  repository.ChatRepository
	logger *slog.Logger

	mu            sync.RWMutex
	bannedUsers   map[int64]struct{}
	disabledChats map[int64]struct{}
}

// NewBanList создаёт пустой список блокировок. Для заполнения вызовите Load.
func NewBanList(users repository.UserRepository, chats repository.ChatRepository, logger *slog.Logger) *BanList {
	return &BanList{
		users:         users,
		chats:         chats,
		logger:        logger.With(slog.String("component", "banlist")),
		bannedUsers:   make(map[int64]struct{}),
		disabledChats: make(map[int64]struct{}),
	}
}

// Load загружает заблокированных пользователей и отключённые чаты из БД.
func (b *BanList) Load(ctx context.Context) error {
	users, err := b.users.ListBanned(ctx)
	if err != nil {
		return fmt.Errorf("загрузка заблокированных пользователей: %w", err)
	}
	chats, err := b.chats.ListDisabled(ctx)
	if err != nil {
		return fmt.Errorf("загрузка отключённых чатов: %w", err)
	}

	bannedUsers := make(map[int64]struct{}, len(users))
	for _, u := range users {
		bannedUsers[u.UserID] = struct{}{}
	}
	disabledChats := make(map[int64]struct{}, len(chats))
	for _, c := range chats {
		disabledChats[c.ChatID] = struct{}{}
	}

	b.mu.Lock()
	b.bannedUsers = bannedUsers
	b.disabledChats = disabledChats
	b.mu.Unlock()

	b.logger.Info("Списки блокировок загружены",
		slog.Int("banned_users", len(bannedUsers)),
		slog.Int("disabled_chats", len(disabledChats)),
	)
	return nil
}

// IsUserBanned проверяет, заблокирован ли пользователь.
func (b *BanList) IsUserBanned(userID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.bannedUsers[userID]
	return ok
}

// IsChatDisabled проверяет, отключён ли чат.
func (b *BanList) IsChatDisabled(chatID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.disabledChats[chatID]
	return ok
}

// BanUser блокирует пользователя.
func (b *BanList) BanUser(ctx context.Context, userID int64, reason string) error {
	if err := b.users.Ban(ctx, userID, reason); err != nil {
		return err
	}
	b.mu.Lock()
	b.bannedUsers[userID] = struct{}{}
	b.mu.Unlock()

	b.logger.Info("Пользователь заблокирован", slog.Int64("user_id", userID), slog.String("reason", reason))
	return nil
}

// UnbanUser снимает блокировку. Незаблокированный пользователь — ErrNotFound.
func (b *BanList) UnbanUser(ctx context.Context, userID int64) error {
	if err := b.users.Unban(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	b.mu.Lock()
	delete(b.bannedUsers, userID)
	b.mu.Unlock()

	b.logger.Info("Пользователь разблокирован", slog.Int64("user_id", userID))
	return nil
}

// DisableChat отключает чат.
func (b *BanList) DisableChat(ctx context.Context, chatID int64, reason string) error {
	if err := b.chats.Disable(ctx, chatID, reason); err != nil {
		return err
	}
	b.mu.Lock()
	b.disabledChats[chatID] = struct{}{}
	b.mu.Unlock()

	b.logger.Info("Чат отключён", slog.Int64("chat_id", chatID), slog.String("reason", reason))
	return nil
}

// EnableChat включает чат. Неотключённый чат — ErrNotFound.
func (b *BanList) EnableChat(ctx context.Context, chatID int64) error {
	if err := b.chats.Enable(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	b.mu.Lock()
	delete(b.disabledChats, chatID)
	b.mu.Unlock()

	b.logger.Info("Чат включён", slog.Int64("chat_id", chatID))
	return nil
}

// RegisterUser запоминает пользователя, впервые написавшего боту.
// Возвращает true для нового пользователя.
func (b *BanList) RegisterUser(ctx context.Context, userID int64, firstName string) (bool, error) {
	return b.users.Add(ctx, userID, firstName)
}

// RegisterChat запоминает чат, в который добавлен бот.
// Возвращает true для нового чата.
func (b *BanList) RegisterChat(ctx context.Context, chatID int64, title string) (bool, error) {
	return b.chats.Add(ctx, chatID, title)
}

// Stats возвращает количество известных пользователей и чатов.
func (b *BanList) Stats(ctx context.Context) (users, chats int64, err error) {
	if users, err = b.users.Count(ctx); err != nil {
		return 0, 0, err
	}
	if chats, err = b.chats.Count(ctx); err != nil {
		return 0, 0, err
	}
	return users, chats, nil
}
