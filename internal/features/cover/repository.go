// Package cover обслуживает расклад «обложка»: аркан пользователя,
// реакция на последнюю обложку и счётчик оплаченных попыток.
// Оплата пополняет счётчик пакетом попыток, каждая проверка списывает
// одну, ниже нуля счётчик не опускается.
package cover

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
)

// User — запись пользователя в фиче обложек.
type User struct {
	ID           int64 `db:"id" json:"id"`
	UserID       int64 `db:"user_id" json:"user_id"`
	Arcan        int   `db:"arcan" json:"arcan"`
	LikeLast     *bool `db:"like_last" json:"like_last"` // NULL, пока реакции не было
	HasPaid      bool  `db:"has_paid" json:"has_paid"`
	AttemptsLeft int   `db:"attempts_left" json:"attempts_left"`
}

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// InitUser заводит запись пользователя с его арканом. Повторный вызов
// обновляет аркан, не трогая попытки и оплату.
func (r *Repository) InitUser(ctx context.Context, userID int64, arcan int) error {
	query := `
		INSERT INTO cover_users (user_id, arcan)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET arcan = EXCLUDED.arcan`
	if _, err := r.db.Exec(ctx, query, userID, arcan); err != nil {
		return fmt.Errorf("не удалось завести пользователя обложек: %w", err)
	}
	return nil
}

// GetUser возвращает запись пользователя, nil если её нет.
func (r *Repository) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, user_id, arcan, like_last, has_paid, attempts_left
		FROM cover_users
		WHERE user_id = $1`
	var u User
	err := r.db.QueryRow(ctx, query, userID).Scan(&u.ID, &u.UserID, &u.Arcan, &u.LikeLast, &u.HasPaid, &u.AttemptsLeft)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать пользователя обложек: %w", err)
	}
	return &u, nil
}

// SetLikeLast сохраняет реакцию на последнюю обложку.
func (r *Repository) SetLikeLast(ctx context.Context, userID int64, liked bool) error {
	query := `UPDATE cover_users SET like_last = $1 WHERE user_id = $2`
	if _, err := r.db.Exec(ctx, query, liked, userID); err != nil {
		return fmt.Errorf("не удалось сохранить реакцию: %w", err)
	}
	return nil
}

// MarkPaid отмечает оплату и зачисляет пакет попыток одним запросом.
func (r *Repository) MarkPaid(ctx context.Context, userID int64, attempts int) error {
	query := `
		INSERT INTO cover_users (user_id, has_paid, attempts_left)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET has_paid = TRUE, attempts_left = cover_users.attempts_left + $2`
	if _, err := r.db.Exec(ctx, query, userID, attempts); err != nil {
		return fmt.Errorf("не удалось отметить оплату: %w", err)
	}
	return nil
}

// AddAttempts зачисляет попытки без отметки об оплате.
func (r *Repository) AddAttempts(ctx context.Context, userID int64, count int) error {
	query := `
		INSERT INTO cover_users (user_id, attempts_left)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET attempts_left = cover_users.attempts_left + $2`
	if _, err := r.db.Exec(ctx, query, userID, count); err != nil {
		return fmt.Errorf("не удалось зачислить попытки: %w", err)
	}
	return nil
}

// Attempts возвращает остаток попыток, ноль для незнакомого пользователя.
func (r *Repository) Attempts(ctx context.Context, userID int64) (int, error) {
	var attempts int
	query := `SELECT attempts_left FROM cover_users WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("не удалось получить остаток попыток: %w", err)
	}
	return attempts, nil
}

// UseAttempt списывает одну попытку. Условие attempts_left > 0 в UPDATE
// не даёт счётчику уйти в минус при конкурентных списаниях.
// Возвращает false, если списывать нечего.
func (r *Repository) UseAttempt(ctx context.Context, userID int64) (bool, error) {
	query := `UPDATE cover_users SET attempts_left = attempts_left - 1 WHERE user_id = $1 AND attempts_left > 0`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("не удалось списать попытку: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
