package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
)

// Поля monthly_forecasts, которые разрешено менять точечным обновлением.
// Имя колонки подставляется в запрос только после проверки по этому
// списку, произвольные имена снаружи в SQL не попадают.
var updatableFields = map[string]struct{}{
	"arcan":               {},
	"subscription":        {},
	"time_to_send_useful": {},
	"useful_sent":         {},
}

var ErrUnknownField = errors.New("неизвестное поле прогноза")

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Subscribe включает подписку, создавая запись при первом обращении.
func (r *Repository) Subscribe(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO monthly_forecasts (user_id, subscription)
		VALUES ($1, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET subscription = TRUE`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("не удалось оформить подписку: %w", err)
	}
	return nil
}

// Unsubscribe выключает подписку. Для незнакомого пользователя ничего
// не делает.
func (r *Repository) Unsubscribe(ctx context.Context, userID int64) error {
	query := `UPDATE monthly_forecasts SET subscription = FALSE WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("не удалось отключить подписку: %w", err)
	}
	return nil
}

// IsSubscribed — активна ли подписка пользователя.
func (r *Repository) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	var subscribed bool
	query := `SELECT subscription FROM monthly_forecasts WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&subscribed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("не удалось проверить подписку: %w", err)
	}
	return subscribed, nil
}

// Subscribers возвращает идентификаторы всех активных подписчиков.
func (r *Repository) Subscribers(ctx context.Context) ([]int64, error) {
	query := `SELECT user_id FROM monthly_forecasts WHERE subscription = TRUE ORDER BY user_id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить подписчиков: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("не удалось прочитать подписчика: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения подписчиков: %w", err)
	}
	return ids, nil
}

// SetField точечно обновляет одно из разрешённых полей записи.
func (r *Repository) SetField(ctx context.Context, userID int64, field string, value any) error {
	if _, ok := updatableFields[field]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	query := fmt.Sprintf(`UPDATE monthly_forecasts SET %s = $1 WHERE user_id = $2`, field)
	if _, err := r.db.Exec(ctx, query, value, userID); err != nil {
		return fmt.Errorf("не удалось обновить поле %s: %w", field, err)
	}
	return nil
}

// DueUseful возвращает подписчиков, которым пора отправить полезное
// сообщение: время наступило, а отметки об отправке ещё нет.
func (r *Repository) DueUseful(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		SELECT user_id
		FROM monthly_forecasts
		WHERE subscription = TRUE
		  AND useful_sent = FALSE
		  AND time_to_send_useful IS NOT NULL
		  AND time_to_send_useful <= $1
		ORDER BY user_id`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить очередь напоминаний: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("не удалось прочитать очередь: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	return ids, nil
}

// MissingUsers возвращает тех из переданных пользователей, у кого ещё
// нет записи прогноза. Бот использует список для напоминаний.
func (r *Repository) MissingUsers(ctx context.Context, candidates []int64) ([]int64, error) {
	query := `
		SELECT u.id
		FROM unnest($1::bigint[]) AS u(id)
		WHERE NOT EXISTS (
			SELECT 1 FROM monthly_forecasts mf WHERE mf.user_id = u.id
		)
		ORDER BY u.id`
	rows, err := r.db.Query(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("не удалось найти пользователей без прогноза: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("не удалось прочитать пользователя: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователей: %w", err)
	}
	return ids, nil
}

// MarkUsefulSent отмечает, что полезное сообщение отправлено.
func (r *Repository) MarkUsefulSent(ctx context.Context, userID int64) error {
	return r.SetField(ctx, userID, "useful_sent", true)
}

// ResetUsefulSent сбрасывает отметки об отправке у всех подписчиков.
// Запускается раз в месяц перед новой рассылкой.
func (r *Repository) ResetUsefulSent(ctx context.Context) (int64, error) {
	query := `UPDATE monthly_forecasts SET useful_sent = FALSE WHERE useful_sent = TRUE`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("не удалось сбросить отметки рассылки: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertDescription сохраняет текст описания аркана на месяц,
// перезаписывая прежний текст того же месяца.
func (r *Repository) UpsertDescription(ctx context.Context, arcan int, month, text string) error {
	query := `
		INSERT INTO arcan_descriptions (arcan, month, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (arcan, month) DO UPDATE SET description = EXCLUDED.description`
	if _, err := r.db.Exec(ctx, query, arcan, month, text); err != nil {
		return fmt.Errorf("не удалось сохранить описание аркана: %w", err)
	}
	return nil
}

// GetDescription возвращает описание аркана на месяц, nil если его нет.
func (r *Repository) GetDescription(ctx context.Context, arcan int, month string) (*Description, error) {
	query := `SELECT arcan, month, description FROM arcan_descriptions WHERE arcan = $1 AND month = $2`
	var d Description
	err := r.db.QueryRow(ctx, query, arcan, month).Scan(&d.Arcan, &d.Month, &d.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось получить описание аркана: %w", err)
	}
	return &d, nil
}
