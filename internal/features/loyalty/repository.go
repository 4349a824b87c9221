// Package loyalty — repository.go выполняет все операции с таблицами
// loyalty, transactions, pre_transactions и expiration_bonus_movement.
// Каждая операция чтения-с-записью выполняется в одной транзакции БД:
// частичных состояний (транзакция без обновления баланса и наоборот)
// снаружи не видно никогда.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
)

// Repository предоставляет методы для работы со счетами и транзакциями.
type Repository struct {
	db postgres.DB
}

// NewRepository создаёт новый репозиторий лояльности.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// CreateAccount заводит счёт с нулевым балансом.
// Если счёт уже существует — common.ErrAccountExists; существующая
// запись НЕ перезаписывается (referrer_id ставится один раз и навсегда).
func (r *Repository) CreateAccount(ctx context.Context, userID int64, referrerID *int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO loyalty (user_id, referrer_id)
		VALUES ($1, $2)
	`, userID, referrerID)
	if postgres.IsUniqueViolation(err) {
		return common.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("ошибка создания счёта: %w", err)
	}
	return nil
}

// GetBalance возвращает текущий баланс пользователя.
// Неизвестный пользователь — это «новый пользователь, ноль баллов»,
// а не ошибка.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx,
		`SELECT balance FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// GetAccount возвращает счёт пользователя или nil, если счёта нет.
func (r *Repository) GetAccount(ctx context.Context, userID int64) (*Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, balance, total_spent, count_of_transaction,
		       last_transaction_date, promo_code, referrer_id
		FROM loyalty
		WHERE user_id = $1
	`, userID).Scan(
		&a.ID, &a.UserID, &a.Balance, &a.TotalSpent, &a.CountOfTransaction,
		&a.LastTransactionDate, &a.PromoCode, &a.ReferrerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения счёта (user_id=%d): %w", userID, err)
	}
	return &a, nil
}

// RecordTransaction — центральная операция: проводит транзакцию и
// обновляет счёт одним атомарным блоком. Возвращает ID транзакции
// из единого пространства номеров.
func (r *Repository) RecordTransaction(ctx context.Context, userID, amount, bonus int64, service, comment string, expirationDays *int) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	id, err := r.recordTransactionTx(ctx, tx, nil, userID, amount, bonus, service, comment, expirationDays)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return id, nil
}

// recordTransactionTx проводит транзакцию внутри уже открытой
// транзакции БД. Вложенные вызовы (реферальный бонус, промоушен
// пре-транзакции) переиспользуют переданную область видимости,
// а не открывают свою.
//
// explicitID != nil означает, что номер счёта уже выдан (пре-транзакция);
// иначе номер берётся из общей последовательности.
func (r *Repository) recordTransactionTx(ctx context.Context, tx pgx.Tx, explicitID *int64, userID, amount, bonus int64, service, comment string, expirationDays *int) (int64, error) {
	// Неизвестный пользователь трактуется как новый: счёт создаётся
	// на лету с нулевым балансом (без реферера).
	if _, err := tx.Exec(ctx, `
		INSERT INTO loyalty (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, fmt.Errorf("ошибка создания счёта на лету: %w", err)
	}

	// 1. Запись транзакции в историю
	var id int64
	if explicitID != nil {
		id = *explicitID
		if _, err := tx.Exec(ctx, `
			INSERT INTO transactions (id, user_id, amount, bonus, service, comment, date)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, id, userID, amount, bonus, service, comment); err != nil {
			return 0, fmt.Errorf("ошибка записи транзакции: %w", err)
		}
	} else {
		err := tx.QueryRow(ctx, `
			INSERT INTO transactions (user_id, amount, bonus, service, comment, date)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id
		`, userID, amount, bonus, service, comment).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("ошибка записи транзакции: %w", err)
		}
	}

	// 2. Обновление счёта в том же атомарном блоке
	if _, err := tx.Exec(ctx, `
		UPDATE loyalty
		SET balance = balance + $2,
		    total_spent = total_spent + $3,
		    count_of_transaction = count_of_transaction + 1,
		    last_transaction_date = NOW()
		WHERE user_id = $1
	`, userID, bonus, amount); err != nil {
		return 0, fmt.Errorf("ошибка обновления баланса: %w", err)
	}

	// 3. Ленивая выдача промокода
	if err := r.ensurePromoCodeTx(ctx, tx, userID); err != nil {
		return 0, err
	}

	// 4. Сгорающий бонус, если задан срок
	if expirationDays != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO expiration_bonus_movement (user_id, bonus, add_date, expire_date)
			VALUES ($1, $2, NOW(), NOW() + $3 * INTERVAL '1 day')
		`, userID, bonus, *expirationDays); err != nil {
			return 0, fmt.Errorf("ошибка записи сгорающего бонуса: %w", err)
		}
	}

	return id, nil
}

// ensurePromoCodeTx выдаёт промокод счёту, у которого его ещё нет.
// Конфликт уникальности не глотается: один повтор с солёным вариантом
// (через SAVEPOINT, иначе транзакция БД останется в abort-состоянии),
// затем громкая ошибка ErrPromoCodeConflict.
func (r *Repository) ensurePromoCodeTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	var current *string
	err := tx.QueryRow(ctx,
		`SELECT promo_code FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("ошибка чтения промокода: %w", err)
	}
	if current != nil {
		return nil
	}

	for _, code := range []string{PromoCode(userID), SaltedPromoCode(userID)} {
		sp, err := tx.Begin(ctx) // SAVEPOINT
		if err != nil {
			return fmt.Errorf("ошибка создания savepoint: %w", err)
		}
		_, err = sp.Exec(ctx,
			`UPDATE loyalty SET promo_code = $1 WHERE user_id = $2`, code, userID,
		)
		if postgres.IsUniqueViolation(err) {
			sp.Rollback(ctx)
			continue
		}
		if err != nil {
			sp.Rollback(ctx)
			return fmt.Errorf("ошибка сохранения промокода: %w", err)
		}
		return sp.Commit(ctx)
	}
	return common.ErrPromoCodeConflict
}

// EnsurePromoCode выдаёт промокод, если его ещё нет, и возвращает
// итоговый код. Повторные вызовы код не меняют.
func (r *Repository) EnsurePromoCode(ctx context.Context, userID int64) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// Неизвестный пользователь получает счёт на лету
	if _, err := tx.Exec(ctx, `
		INSERT INTO loyalty (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return "", fmt.Errorf("ошибка создания счёта на лету: %w", err)
	}

	if err := r.ensurePromoCodeTx(ctx, tx, userID); err != nil {
		return "", err
	}

	var code string
	if err := tx.QueryRow(ctx,
		`SELECT promo_code FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&code); err != nil {
		return "", fmt.Errorf("ошибка чтения промокода: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("ошибка фиксации выдачи промокода: %w", err)
	}
	return code, nil
}

// DeductPoints списывает баллы со счёта. Единственные атомарные ворота
// списания: строка счёта блокируется FOR UPDATE, проверка и списание
// происходят в одной транзакции БД. Предварительный CheckBalance из
// API-слоя — только подсказка для интерфейса, на него полагаться нельзя.
//
// Возвращает баланс после списания. При нехватке баллов — текущий
// баланс и common.ErrInsufficientBalance, счёт не меняется.
func (r *Repository) DeductPoints(ctx context.Context, userID, points int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM loyalty WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		// Нет счёта — баланс ноль, списывать нечего
		return 0, common.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	if current < points {
		return current, common.ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, `
		UPDATE loyalty
		SET balance = balance - $2, last_transaction_date = NOW()
		WHERE user_id = $1
	`, userID, points); err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации списания: %w", err)
	}
	return current - points, nil
}

// CheckBalance — чистое чтение «хватит ли баллов». Ничего не меняет
// и ничего не резервирует: параллельное DeductPoints всё равно может
// успеть раньше.
func (r *Repository) CheckBalance(ctx context.Context, userID, points int64) (bool, int64, error) {
	balance, err := r.GetBalance(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return balance >= points, balance, nil
}

// UsePromoCode находит владельца промокода, начисляет ему реферальный
// бонус и (если передан newUserID) заводит новый счёт со ссылкой на
// реферера. Всё в одной транзакции БД.
//
// Код переиспользуемый: бонус платится за каждое применение, один код
// может привести много друзей. Это намеренное поведение.
func (r *Repository) UsePromoCode(ctx context.Context, code string, newUserID *int64, bonus int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var referrerID int64
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM loyalty WHERE promo_code = $1`, code,
	).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrInvalidPromoCode
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска промокода: %w", err)
	}

	// Реферальный бонус владельцу кода (amount=0 — чистое начисление)
	if _, err := r.recordTransactionTx(ctx, tx, nil, referrerID, 0, bonus, ServiceReferral, "", nil); err != nil {
		return 0, err
	}

	if newUserID != nil {
		// Существующий счёт не трогаем: referrer_id ставится один раз
		if _, err := tx.Exec(ctx, `
			INSERT INTO loyalty (user_id, referrer_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING
		`, *newUserID, referrerID); err != nil {
			return 0, fmt.Errorf("ошибка создания счёта приглашённого: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации применения промокода: %w", err)
	}
	return referrerID, nil
}

// GetUserTransactions возвращает транзакции пользователя, новые первыми.
// limit == nil — без ограничения.
func (r *Repository) GetUserTransactions(ctx context.Context, userID int64, limit *int) ([]*Transaction, error) {
	query := `
		SELECT id, user_id, amount, bonus, service, comment, date
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC
	`
	var (
		rows pgx.Rows
		err  error
	)
	if limit != nil {
		rows, err = r.db.Query(ctx, query+` LIMIT $2`, userID, *limit)
	} else {
		rows, err = r.db.Query(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Bonus, &t.Service, &t.Comment, &t.Date); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}

// GetTransactionCount возвращает счётчик транзакций (0 для неизвестных).
func (r *Repository) GetTransactionCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT count_of_transaction FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения счётчика транзакций: %w", err)
	}
	return count, nil
}

// GetTotalSpent возвращает сумму покупок за всё время (0 для неизвестных).
func (r *Repository) GetTotalSpent(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT total_spent FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения суммы покупок: %w", err)
	}
	return total, nil
}

// GetPromoCode возвращает промокод пользователя или nil, если код
// ещё не выдан (или счёта нет).
func (r *Repository) GetPromoCode(ctx context.Context, userID int64) (*string, error) {
	var code *string
	err := r.db.QueryRow(ctx,
		`SELECT promo_code FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения промокода: %w", err)
	}
	return code, nil
}

// GetReferrerID возвращает реферера пользователя или nil.
func (r *Repository) GetReferrerID(ctx context.Context, userID int64) (*int64, error) {
	var referrer *int64
	err := r.db.QueryRow(ctx,
		`SELECT referrer_id FROM loyalty WHERE user_id = $1`, userID,
	).Scan(&referrer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения реферера: %w", err)
	}
	return referrer, nil
}

// UpdateBalance — прямая корректировка баланса (админская дверь).
// noTransaction оставляет last_transaction_date нетронутой.
func (r *Repository) UpdateBalance(ctx context.Context, userID, points int64, noTransaction bool) error {
	query := `
		UPDATE loyalty
		SET balance = balance + $2, last_transaction_date = NOW()
		WHERE user_id = $1
	`
	if noTransaction {
		query = `UPDATE loyalty SET balance = balance + $2 WHERE user_id = $1`
	}
	if _, err := r.db.Exec(ctx, query, userID, points); err != nil {
		return fmt.Errorf("ошибка корректировки баланса: %w", err)
	}
	return nil
}

// ExpireDueBonuses возвращает сгорающие бонусы, срок которых наступил.
// Ничего не меняет: двухфазная схема «прочитай кандидатов — подтверди
// MarkBurned». Падение между фазами оставляет бонус в очереди на
// повторную обработку, а не теряет его.
func (r *Repository) ExpireDueBonuses(ctx context.Context, now time.Time) ([]*ExpirationBonus, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, bonus, add_date, expire_date, flag_is_burned
		FROM expiration_bonus_movement
		WHERE expire_date <= $1 AND flag_is_burned = FALSE
		ORDER BY expire_date
	`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сгоревших бонусов: %w", err)
	}
	defer rows.Close()

	var bonuses []*ExpirationBonus
	for rows.Next() {
		var b ExpirationBonus
		if err := rows.Scan(&b.ID, &b.UserID, &b.Bonus, &b.AddDate, &b.ExpireDate, &b.Burned); err != nil {
			return nil, fmt.Errorf("ошибка сканирования бонуса: %w", err)
		}
		bonuses = append(bonuses, &b)
	}
	return bonuses, rows.Err()
}

// MarkBurned переводит бонус в состояние Burned. Идемпотентна:
// повторный вызов — no-op, флаг обратно не снимается никогда.
func (r *Repository) MarkBurned(ctx context.Context, bonusID int64) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE expiration_bonus_movement
		SET flag_is_burned = TRUE
		WHERE id = $1
	`, bonusID); err != nil {
		return fmt.Errorf("ошибка пометки бонуса сгоревшим: %w", err)
	}
	return nil
}

// BurnRemainder списывает несгоревший остаток бонуса и подтверждает
// сгорание в одной транзакции БД: либо происходит и списание, и отметка
// flag_is_burned, либо ничего. Упавшее подтверждение откатывает и
// списание, поэтому повторный проход не спишет остаток второй раз.
func (r *Repository) BurnRemainder(ctx context.Context, b *ExpirationBonus, remaining int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	if remaining > 0 {
		if _, err := r.recordTransactionTx(ctx, tx, nil, b.UserID, 0, -remaining, ServiceBonusBurn, "сгорание бонуса", nil); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE expiration_bonus_movement
		SET flag_is_burned = TRUE
		WHERE id = $1
	`, b.ID); err != nil {
		return fmt.Errorf("ошибка пометки бонуса сгоревшим: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации сгорания: %w", err)
	}
	return nil
}

// ComputeSpentInWindow суммирует модуль отрицательных движений баллов
// в окне дат. Это сознательное приближение: траты не привязываются к
// конкретному начислению, при пересекающихся сгорающих бонусах одного
// пользователя сумма общая. Не «чинить» без пересмотра всей модели
// сгорания.
func (r *Repository) ComputeSpentInWindow(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	var spent int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(ABS(SUM(bonus)), 0)
		FROM transactions
		WHERE user_id = $1 AND date BETWEEN $2 AND $3 AND bonus < 0
	`, userID, from, to).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта трат в окне: %w", err)
	}
	return spent, nil
}

// NewUsersCount считает пользователей, пришедших в программу за период.
// Границы периода необязательны.
func (r *Repository) NewUsersCount(ctx context.Context, from, to *time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM loyalty
		WHERE ($1::timestamp IS NULL OR created_at >= $1)
		  AND ($2::timestamp IS NULL OR created_at <= $2)
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта новых пользователей: %w", err)
	}
	return count, nil
}

// TransactionTotals считает число транзакций и оборот за период.
func (r *Repository) TransactionTotals(ctx context.Context, from, to *time.Time) (int64, int64, error) {
	var count, revenue int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE ($1::timestamp IS NULL OR date >= $1)
		  AND ($2::timestamp IS NULL OR date <= $2)
	`, from, to).Scan(&count, &revenue)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта транзакций за период: %w", err)
	}
	return count, revenue, nil
}

// BurnedBonusTotal — сумма сгоревших бонусов за период.
func (r *Repository) BurnedBonusTotal(ctx context.Context, from, to *time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(bonus), 0)
		FROM expiration_bonus_movement
		WHERE flag_is_burned = TRUE
		  AND ($1::timestamp IS NULL OR expire_date >= $1)
		  AND ($2::timestamp IS NULL OR expire_date <= $2)
	`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта сгоревших бонусов: %w", err)
	}
	return total, nil
}

// GetStats возвращает агрегаты по всей программе лояльности.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(balance), 0), COALESCE(SUM(total_spent), 0)
		FROM loyalty
	`).Scan(&s.UsersCount, &s.TotalBalance, &s.TotalSpent)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики лояльности: %w", err)
	}
	return &s, nil
}
