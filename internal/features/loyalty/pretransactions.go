// Package loyalty — pretransactions.go работает с пре-транзакциями
// и единым пространством номеров счетов.
//
// Таблицы transactions, pre_transactions и city_transactions делят одну
// последовательность transaction_id_seq: платёжный шлюз возвращает один
// номер счёта, и по нему должна находиться ровно одна строка — в какой
// бы из трёх таблиц она ни лежала.
package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

// RecordPreTransaction записывает отложенную транзакцию: номер счёта
// уже выдан шлюзу, но баланс не трогается до подтверждения оплаты.
func (r *Repository) RecordPreTransaction(ctx context.Context, userID, amount, bonus int64, service, comment string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO pre_transactions (user_id, amount, bonus, service, comment, date)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, userID, amount, bonus, service, comment).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи пре-транзакции: %w", err)
	}
	return id, nil
}

// PromotePreTransaction проводит пре-транзакцию как настоящую после
// подтверждения оплаты. Идемпотентна: повторное уведомление шлюза по
// тому же номеру счёта ничего не применяет второй раз.
//
// Возвращает (userID, applied): applied=false — транзакция уже была
// проведена раньше.
func (r *Repository) PromotePreTransaction(ctx context.Context, invoiceID int64) (int64, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var (
		userID, amount, bonus int64
		service, comment      string
	)
	err = tx.QueryRow(ctx, `
		SELECT user_id, amount, bonus, service, comment
		FROM pre_transactions
		WHERE id = $1
		FOR UPDATE
	`, invoiceID).Scan(&userID, &amount, &bonus, &service, &comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, common.ErrTransactionNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения пре-транзакции: %w", err)
	}

	// Уже проведена? Номер общий для всех трёх таблиц, поэтому
	// достаточно проверить transactions.
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, invoiceID,
	).Scan(&exists); err != nil {
		return 0, false, fmt.Errorf("ошибка проверки идемпотентности: %w", err)
	}
	if exists {
		return userID, false, nil
	}

	if _, err := r.recordTransactionTx(ctx, tx, &invoiceID, userID, amount, bonus, service, comment, nil); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("ошибка фиксации промоушена: %w", err)
	}
	return userID, true, nil
}

// AllocateTransactionID выдаёт следующий номер из единого пространства.
// Последовательность БД не возвращает один номер дважды, поэтому
// параллельные вызовы безопасны по построению.
func (r *Repository) AllocateTransactionID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx,
		`SELECT nextval('transaction_id_seq')`,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return id, nil
}

// LastTransactionID возвращает последний выданный номер счёта
// (верхнюю границу единого пространства). Бот использует его, чтобы
// предсказать номер следующего счёта для шлюза.
//
// Сразу после засева последовательности last_value равен порогу (1000),
// даже если счёта с таким номером нет: граница может завышать реальный
// максимум на один слот. Для предсказания следующего номера это
// безопасно — последовательность никогда не выдаст номер ниже границы.
func (r *Repository) LastTransactionID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx,
		`SELECT last_value FROM transaction_id_seq`,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка чтения последнего номера: %w", err)
	}
	return id, nil
}
