package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
)

// UserRepository — интерфейс доступа к пользователям бота.
type UserRepository interface {
	// Add регистрирует пользователя. Возвращает false, если он уже известен.
	Add(ctx context.Context, userID int64, firstName string) (bool, error)
	// Ban блокирует пользователя (создаёт запись при необходимости).
	Ban(ctx context.Context, userID int64, reason string) error
	// Unban снимает блокировку. Незаблокированный пользователь — ErrNotFound.
	Unban(ctx context.Context, userID int64) error
	// ListBanned возвращает всех заблокированных пользователей.
	ListBanned(ctx context.Context) ([]model.BannedUser, error)
	// Count возвращает количество пользователей.
	Count(ctx context.Context) (int64, error)
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Add(ctx context.Context, userID int64, firstName string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO users (user_id, first_name) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, firstName,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка добавления пользователя: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepo) Ban(ctx context.Context, userID int64, reason string) error {
	query := `
		INSERT INTO users (user_id, is_banned, ban_reason, banned_at)
		VALUES ($1, TRUE, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			is_banned = TRUE,
			ban_reason = EXCLUDED.ban_reason,
			banned_at = NOW()`

	if _, err := r.db.Exec(ctx, query, userID, reason); err != nil {
		return fmt.Errorf("ошибка блокировки пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) Unban(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET is_banned = FALSE, ban_reason = '', banned_at = NULL
		WHERE user_id = $1 AND is_banned`

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ошибка разблокировки пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) ListBanned(ctx context.Context) ([]model.BannedUser, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, ban_reason, banned_at FROM users WHERE is_banned ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заблокированных пользователей: %w", err)
	}
	defer rows.Close()

	var result []model.BannedUser
	for rows.Next() {
		var u model.BannedUser
		if err := rows.Scan(&u.UserID, &u.Reason, &u.BannedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return n, nil
}
