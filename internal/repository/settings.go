package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
)

// SettingsRepository — интерфейс доступа к настройкам чатов.
type SettingsRepository interface {
	// Get возвращает настройки чата или ErrNotFound.
	Get(ctx context.Context, chatID int64) (*model.ChatSettings, error)
	// Upsert создаёт или обновляет настройки чата.
	Upsert(ctx context.Context, s *model.ChatSettings) error
}

// settingsRepo — реализация SettingsRepository через pgx.
type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек чатов.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context, chatID int64) (*model.ChatSettings, error) {
	query := `SELECT chat_id, max_btn, updated_at FROM chat_settings WHERE chat_id = $1`

	s := &model.ChatSettings{}
	err := r.db.QueryRow(ctx, query, chatID).Scan(&s.ChatID, &s.MaxBtn, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения настроек чата: %w", err)
	}
	return s, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, s *model.ChatSettings) error {
	query := `
		INSERT INTO chat_settings (chat_id, max_btn, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chat_id) DO UPDATE SET
			max_btn = EXCLUDED.max_btn,
			updated_at = NOW()
		RETURNING updated_at`

	if err := r.db.QueryRow(ctx, query, s.ChatID, s.MaxBtn).Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("ошибка сохранения настроек чата: %w", err)
	}
	return nil
}
