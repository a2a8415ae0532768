package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
)

// ChatRepository — интерфейс доступа к чатам, в которых работает бот.
type ChatRepository interface {
	// Add регистрирует чат. Возвращает false, если он уже известен.
	Add(ctx context.Context, chatID int64, title string) (bool, error)
	// Disable отключает чат (создаёт запись при необходимости).
	Disable(ctx context.Context, chatID int64, reason string) error
	// Enable включает чат. Неотключённый чат — ErrNotFound.
	Enable(ctx context.Context, chatID int64) error
	// ListDisabled возвращает все отключённые чаты.
	ListDisabled(ctx context.Context) ([]model.DisabledChat, error)
	// Count возвращает количество чатов.
	Count(ctx context.Context) (int64, error)
}

// chatRepo — реализация ChatRepository через pgx.
type chatRepo struct {
	db DBTX
}

// NewChatRepository создаёт репозиторий чатов.
func NewChatRepository(db DBTX) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Add(ctx context.Context, chatID int64, title string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO chats (chat_id, title) VALUES ($1, $2) ON CONFLICT (chat_id) DO NOTHING`,
		chatID, title,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка добавления чата: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *chatRepo) Disable(ctx context.Context, chatID int64, reason string) error {
	query := `
		INSERT INTO chats (chat_id, is_disabled, disable_reason, disabled_at)
		VALUES ($1, TRUE, $2, NOW())
		ON CONFLICT (chat_id) DO UPDATE SET
			is_disabled = TRUE,
			disable_reason = EXCLUDED.disable_reason,
			disabled_at = NOW()`

	if _, err := r.db.Exec(ctx, query, chatID, reason); err != nil {
		return fmt.Errorf("ошибка отключения чата: %w", err)
	}
	return nil
}

func (r *chatRepo) Enable(ctx context.Context, chatID int64) error {
	query := `
		UPDATE chats
		SET is_disabled = FALSE, disable_reason = '', disabled_at = NULL
		WHERE chat_id = $1 AND is_disabled`

	tag, err := r.db.Exec(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("ошибка включения чата: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chatRepo) ListDisabled(ctx context.Context) ([]model.DisabledChat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT chat_id, disable_reason, disabled_at FROM chats WHERE is_disabled ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения отключённых чатов: %w", err)
	}
	defer rows.Close()

	var result []model.DisabledChat
	for rows.Next() {
		var c model.DisabledChat
		if err := rows.Scan(&c.ChatID, &c.Reason, &c.DisabledAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования чата: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

func (r *chatRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта чатов: %w", err)
	}
	return n, nil
}
