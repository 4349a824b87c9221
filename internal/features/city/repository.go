package city

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
)

// Repository инкапсулирует работу с таблицами city и city_transactions.
type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Register создаёт запись пользователя с начальным запасом бесплатных попыток.
// Повторная регистрация возвращает ErrAlreadyInCity.
func (r *Repository) Register(ctx context.Context, userID int64, freeTries int) error {
	query := `INSERT INTO city (user_id, have_free_try) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, userID, freeTries)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return common.ErrAlreadyInCity
		}
		return fmt.Errorf("не удалось зарегистрировать пользователя в городах: %w", err)
	}
	return nil
}

// IsFirstTime — true, если пользователь ещё не регистрировался в фиче.
func (r *Repository) IsFirstTime(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM city WHERE user_id = $1)`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("не удалось проверить регистрацию: %w", err)
	}
	return !exists, nil
}

// FreeTriesLeft возвращает остаток бесплатных попыток.
// Для незарегистрированного пользователя остаток равен нулю.
func (r *Repository) FreeTriesLeft(ctx context.Context, userID int64) (int, error) {
	var left int
	query := `SELECT have_free_try FROM city WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&left)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("не удалось получить остаток попыток: %w", err)
	}
	return left, nil
}

// UseFreeTry списывает одну бесплатную попытку. Условие have_free_try > 0
// в самом UPDATE гарантирует, что счётчик не уйдёт в минус даже при
// конкурентных запросах. Возвращает false, если попыток не осталось.
func (r *Repository) UseFreeTry(ctx context.Context, userID int64) (bool, error) {
	query := `UPDATE city SET have_free_try = have_free_try - 1 WHERE user_id = $1 AND have_free_try > 0`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("не удалось списать попытку: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasUnlimited — оплачен ли пользователю безлимитный доступ.
func (r *Repository) HasUnlimited(ctx context.Context, userID int64) (bool, error) {
	var unlimited bool
	query := `SELECT have_pay FROM city WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&unlimited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("не удалось проверить безлимит: %w", err)
	}
	return unlimited, nil
}

// SetUnlimited включает безлимитный доступ. Идемпотентна.
func (r *Repository) SetUnlimited(ctx context.Context, userID int64) error {
	query := `UPDATE city SET have_pay = TRUE WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("не удалось включить безлимит: %w", err)
	}
	return nil
}

// AddCheckedCity дописывает город в список проверенных. Список хранится
// строкой через запятую, повторы не добавляются. Чтение и запись идут
// в одной транзакции под FOR UPDATE, чтобы не потерять города при
// одновременных проверках.
func (r *Repository) AddCheckedCity(ctx context.Context, userID int64, cityName string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var checked *string
	query := `SELECT cities_checked FROM city WHERE user_id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, query, userID).Scan(&checked); err != nil {
		return fmt.Errorf("не удалось прочитать список городов: %w", err)
	}

	cities := splitCities(checked)
	for _, c := range cities {
		if strings.EqualFold(c, cityName) {
			return tx.Commit(ctx)
		}
	}
	cities = append(cities, cityName)
	joined := strings.Join(cities, ",")

	updateQuery := `UPDATE city SET cities_checked = $1 WHERE user_id = $2`
	if _, err := tx.Exec(ctx, updateQuery, joined, userID); err != nil {
		return fmt.Errorf("не удалось обновить список городов: %w", err)
	}
	return tx.Commit(ctx)
}

// CheckedCities возвращает список уже проверенных городов.
func (r *Repository) CheckedCities(ctx context.Context, userID int64) ([]string, error) {
	var checked *string
	query := `SELECT cities_checked FROM city WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&checked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось получить список городов: %w", err)
	}
	return splitCities(checked), nil
}

func splitCities(raw *string) []string {
	if raw == nil || *raw == "" {
		return nil
	}
	parts := strings.Split(*raw, ",")
	cities := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cities = append(cities, trimmed)
		}
	}
	return cities
}

// RecordTransaction создаёт платёжную транзакцию совместимости в статусе
// pending. Номер выделяется из единой последовательности transaction_id_seq.
func (r *Repository) RecordTransaction(ctx context.Context, userID, amount int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var id int64
	insertQuery := `
		INSERT INTO city_transactions (user_id, amount, status)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := tx.QueryRow(ctx, insertQuery, userID, amount, StatusPending).Scan(&id); err != nil {
		return 0, fmt.Errorf("не удалось создать транзакцию совместимости: %w", err)
	}

	updateQuery := `UPDATE city SET last_transaction_date = NOW() WHERE user_id = $1`
	if _, err := tx.Exec(ctx, updateQuery, userID); err != nil {
		return 0, fmt.Errorf("не удалось обновить дату транзакции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}
	return id, nil
}

// ConfirmTransaction переводит транзакцию в confirmed и проставляет pay_date.
// Строка блокируется FOR UPDATE, поэтому конкурирующие уведомления об
// оплате подтвердят транзакцию ровно один раз: повтор вернёт applied=false.
func (r *Repository) ConfirmTransaction(ctx context.Context, invoiceID int64) (int64, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	var status string
	selectQuery := `SELECT user_id, status FROM city_transactions WHERE id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, selectQuery, invoiceID).Scan(&userID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, common.ErrTransactionNotFound
		}
		return 0, false, fmt.Errorf("не удалось найти транзакцию: %w", err)
	}

	if status == StatusConfirmed {
		return userID, false, tx.Commit(ctx)
	}

	updateQuery := `UPDATE city_transactions SET status = $1, pay_date = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQuery, StatusConfirmed, invoiceID); err != nil {
		return 0, false, fmt.Errorf("не удалось подтвердить транзакцию: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("не удалось зафиксировать подтверждение: %w", err)
	}
	return userID, true, nil
}

// LastTransaction возвращает последнюю по дате создания транзакцию
// совместимости, nil если их ещё не было.
func (r *Repository) LastTransaction(ctx context.Context) (*Transaction, error) {
	query := `
		SELECT id, user_id, amount, create_date, pay_date, status
		FROM city_transactions
		ORDER BY create_date DESC, id DESC
		LIMIT 1`
	var t Transaction
	err := r.db.QueryRow(ctx, query).Scan(&t.ID, &t.UserID, &t.Amount, &t.CreateDate, &t.PayDate, &t.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось получить последнюю транзакцию: %w", err)
	}
	return &t, nil
}

// UserTransactions возвращает транзакции пользователя, свежие первыми.
func (r *Repository) UserTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	query := `
		SELECT id, user_id, amount, create_date, pay_date, status
		FROM city_transactions
		WHERE user_id = $1
		ORDER BY create_date DESC, id DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить транзакции пользователя: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.CreateDate, &t.PayDate, &t.Status); err != nil {
			return nil, fmt.Errorf("не удалось прочитать транзакцию: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения транзакций: %w", err)
	}
	return transactions, nil
}

// ConfirmedTotals считает число и сумму подтверждённых транзакций за период.
// Границы периода необязательны.
func (r *Repository) ConfirmedTotals(ctx context.Context, from, to *time.Time) (int64, int64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM city_transactions
		WHERE status = $1
		  AND ($2::timestamp IS NULL OR pay_date >= $2)
		  AND ($3::timestamp IS NULL OR pay_date <= $3)`
	var count, total int64
	if err := r.db.QueryRow(ctx, query, StatusConfirmed, from, to).Scan(&count, &total); err != nil {
		return 0, 0, fmt.Errorf("не удалось посчитать подтверждённые транзакции: %w", err)
	}
	return count, total, nil
}

// FreeTriesConsumed считает, сколько бесплатных попыток потрачено всеми
// пользователями. initial — стартовый запас попыток на пользователя.
func (r *Repository) FreeTriesConsumed(ctx context.Context, initial int) (int64, error) {
	query := `
		SELECT COALESCE(SUM($1 - have_free_try), 0)
		FROM city
		WHERE have_free_try < $1`
	var consumed int64
	if err := r.db.QueryRow(ctx, query, initial).Scan(&consumed); err != nil {
		return 0, fmt.Errorf("не удалось посчитать потраченные попытки: %w", err)
	}
	return consumed, nil
}

// ConfirmedAmounts возвращает суммы всех подтверждённых транзакций за период.
func (r *Repository) ConfirmedAmounts(ctx context.Context, from, to *time.Time) ([]int64, error) {
	query := `
		SELECT amount
		FROM city_transactions
		WHERE status = $1
		  AND ($2::timestamp IS NULL OR pay_date >= $2)
		  AND ($3::timestamp IS NULL OR pay_date <= $3)`
	rows, err := r.db.Query(ctx, query, StatusConfirmed, from, to)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить суммы транзакций: %w", err)
	}
	defer rows.Close()

	var amounts []int64
	for rows.Next() {
		var amount int64
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("не удалось прочитать сумму: %w", err)
		}
		amounts = append(amounts, amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения сумм: %w", err)
	}
	return amounts, nil
}
