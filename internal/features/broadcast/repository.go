// Package broadcast ведёт учёт рассылок: кто в какую рассылку попал и
// кому сообщение уже доставлено. Каждая пара (рассылка, пользователь)
// хранится отдельной строкой.
package broadcast

import (
	"context"
	"fmt"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
)

// Summary — сводка по одной рассылке.
type Summary struct {
	Name      string `db:"broadcast_name" json:"broadcast_name"`
	Total     int64  `db:"total" json:"total"`
	Delivered int64  `db:"delivered" json:"delivered"`
}

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// AddRecipients добавляет получателей в рассылку. Повторное добавление
// того же пользователя в ту же рассылку молча пропускается.
func (r *Repository) AddRecipients(ctx context.Context, name string, userIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO broadcasts (broadcast_name, user_id)
		VALUES ($1, $2)
		ON CONFLICT (broadcast_name, user_id) DO NOTHING`
	for _, userID := range userIDs {
		if _, err := tx.Exec(ctx, query, name, userID); err != nil {
			return fmt.Errorf("не удалось добавить получателя: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// PendingRecipients возвращает получателей, которым сообщение ещё не
// доставлено.
func (r *Repository) PendingRecipients(ctx context.Context, name string) ([]int64, error) {
	query := `
		SELECT user_id
		FROM broadcasts
		WHERE broadcast_name = $1 AND delivered = FALSE
		ORDER BY user_id`
	rows, err := r.db.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить очередь рассылки: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("не удалось прочитать получателя: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди рассылки: %w", err)
	}
	return ids, nil
}

// MarkDelivered отмечает доставку сообщения пользователю. Идемпотентна.
func (r *Repository) MarkDelivered(ctx context.Context, name string, userID int64) error {
	query := `UPDATE broadcasts SET delivered = TRUE WHERE broadcast_name = $1 AND user_id = $2`
	if _, err := r.db.Exec(ctx, query, name, userID); err != nil {
		return fmt.Errorf("не удалось отметить доставку: %w", err)
	}
	return nil
}

// Reset снимает отметки доставки у рассылки, чтобы прогнать её заново
// по тому же списку получателей. Возвращает число сброшенных отметок.
func (r *Repository) Reset(ctx context.Context, name string) (int64, error) {
	query := `UPDATE broadcasts SET delivered = FALSE WHERE broadcast_name = $1 AND delivered = TRUE`
	tag, err := r.db.Exec(ctx, query, name)
	if err != nil {
		return 0, fmt.Errorf("не удалось сбросить рассылку: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Summaries возвращает сводку по всем рассылкам.
func (r *Repository) Summaries(ctx context.Context) ([]Summary, error) {
	query := `
		SELECT broadcast_name,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE delivered) AS delivered
		FROM broadcasts
		GROUP BY broadcast_name
		ORDER BY broadcast_name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить сводку рассылок: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Name, &s.Total, &s.Delivered); err != nil {
			return nil, fmt.Errorf("не удалось прочитать сводку: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения сводки рассылок: %w", err)
	}
	return summaries, nil
}
