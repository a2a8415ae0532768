// settings.go — настройки групповых чатов с кэшированием.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/repository"
)

// SettingsService — чтение и изменение настроек чатов.
// Отсутствующие настройки заменяются значениями по умолчанию.
type SettingsService struct {
	repo   repository.SettingsRepository
	cache  *CacheService[int64, model.ChatSettings]
	logger *slog.Logger
}

// NewSettingsService создаёт сервис настроек чатов.
func NewSettingsService(
	repo repository.SettingsRepository,
	cache *CacheService[int64, model.ChatSettings],
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "settings_service")),
	}
}

// Get возвращает настройки чата.
func (s *SettingsService) Get(ctx context.Context, chatID int64) (model.ChatSettings, error) {
	if st, ok := s.cache.Get(chatID); ok {
		return st, nil
	}

	st, err := s.repo.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			def := model.DefaultChatSettings(chatID)
			s.cache.Set(chatID, def)
			return def, nil
		}
		return model.ChatSettings{}, fmt.Errorf("получение настроек чата %d: %w", chatID, err)
	}

	s.cache.Set(chatID, *st)
	return *st, nil
}

// SetCompact включает или выключает компактный режим чата.
func (s *SettingsService) SetCompact(ctx context.Context, chatID int64, on bool) error {
	st := &model.ChatSettings{ChatID: chatID, MaxBtn: on}
	if err := s.repo.Upsert(ctx, st); err != nil {
		s.cache.Delete(chatID)
		return fmt.Errorf("сохранение настроек чата %d: %w", chatID, err)
	}
	s.cache.Set(chatID, *st)

	s.logger.Info("Настройки чата изменены",
		slog.Int64("chat_id", chatID),
		slog.Bool("max_btn", on),
	)
	return nil
}
