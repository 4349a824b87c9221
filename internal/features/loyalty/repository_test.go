package loyalty

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestCreateAccount(t *testing.T) {
	t.Run("дубликат счёта", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO loyalty (user_id, referrer_id)`)).
			WithArgs(int64(42), (*int64)(nil)).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.CreateAccount(context.Background(), 42, nil)
		require.ErrorIs(t, err, common.ErrAccountExists)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("новый счёт", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		referrer := int64(7)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO loyalty (user_id, referrer_id)`)).
			WithArgs(int64(42), &referrer).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.CreateAccount(context.Background(), 42, &referrer))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetBalance(t *testing.T) {
	t.Run("неизвестный пользователь это ноль, а не ошибка", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM loyalty WHERE user_id = $1`)).
			WithArgs(int64(42)).
			WillReturnError(pgx.ErrNoRows)

		balance, err := repo.GetBalance(context.Background(), 42)
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	t.Run("существующий счёт", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM loyalty WHERE user_id = $1`)).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(150)))

		balance, err := repo.GetBalance(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(150), balance)
	})
}

func TestDeductPoints(t *testing.T) {
	selectForUpdate := regexp.QuoteMeta(`SELECT balance FROM loyalty WHERE user_id = $1 FOR UPDATE`)

	t.Run("успешное списание возвращает остаток", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(100)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty`)).
			WithArgs(int64(42), int64(30)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		remaining, err := repo.DeductPoints(context.Background(), 42, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(70), remaining)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("нехватка баллов не меняет счёт", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(20)))
		mock.ExpectRollback()

		balance, err := repo.DeductPoints(context.Background(), 42, 30)
		require.ErrorIs(t, err, common.ErrInsufficientBalance)
		assert.Equal(t, int64(20), balance)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("отсутствующий счёт это нулевой баланс", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(int64(42)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		balance, err := repo.DeductPoints(context.Background(), 42, 30)
		require.ErrorIs(t, err, common.ErrInsufficientBalance)
		assert.Zero(t, balance)
	})

	t.Run("списание ровно до нуля проходит", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(30)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty`)).
			WithArgs(int64(42), int64(30)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		remaining, err := repo.DeductPoints(context.Background(), 42, 30)
		require.NoError(t, err)
		assert.Zero(t, remaining)
	})
}

func TestCheckBalance(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM loyalty WHERE user_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(50)))

	sufficient, balance, err := repo.CheckBalance(context.Background(), 42, 60)
	require.NoError(t, err)
	assert.False(t, sufficient)
	assert.Equal(t, int64(50), balance)
}

func TestUsePromoCodeUnknown(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM loyalty WHERE promo_code = $1`)).
		WithArgs("PROMO999").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.UsePromoCode(context.Background(), "PROMO999", nil, 500)
	require.ErrorIs(t, err, common.ErrInvalidPromoCode)
}

func TestRecordTransaction(t *testing.T) {
	t.Run("полный атомарный блок", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO loyalty (user_id)`)).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions (user_id, amount, bonus, service, comment, date)`)).
			WithArgs(int64(42), int64(1000), int64(50), "consultation", "разбор").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1001)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty`)).
			WithArgs(int64(42), int64(50), int64(1000)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		// Промокод уже выдан, повторная выдача не нужна.
		// Колонка допускает NULL, поэтому фикстура отдаёт указатель
		issuedCode := "PROMO42"
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT promo_code FROM loyalty WHERE user_id = $1`)).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"promo_code"}).AddRow(&issuedCode))
		mock.ExpectCommit()

		id, err := repo.RecordTransaction(context.Background(), 42, 1000, 50, "consultation", "разбор", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ленивая выдача промокода и сгорающий бонус", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		days := 30
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO loyalty (user_id)`)).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions (user_id, amount, bonus, service, comment, date)`)).
			WithArgs(int64(42), int64(0), int64(200), "gift", "").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1002)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty`)).
			WithArgs(int64(42), int64(200), int64(0)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT promo_code FROM loyalty WHERE user_id = $1`)).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"promo_code"}).AddRow(nil))
		mock.ExpectBegin() // SAVEPOINT
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty SET promo_code = $1 WHERE user_id = $2`)).
			WithArgs("PROMO42", int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit() // RELEASE SAVEPOINT
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO expiration_bonus_movement (user_id, bonus, add_date, expire_date)`)).
			WithArgs(int64(42), int64(200), 30).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		id, err := repo.RecordTransaction(context.Background(), 42, 0, 200, "gift", "", &days)
		require.NoError(t, err)
		assert.Equal(t, int64(1002), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPromotePreTransaction(t *testing.T) {
	selectPre := regexp.QuoteMeta(`SELECT user_id, amount, bonus, service, comment`)

	t.Run("неизвестный счёт", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectPre).
			WithArgs(int64(1001)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, _, err := repo.PromotePreTransaction(context.Background(), 1001)
		require.ErrorIs(t, err, common.ErrTransactionNotFound)
	})

	t.Run("повторный промоушен ничего не меняет", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectPre).
			WithArgs(int64(1001)).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount", "bonus", "service", "comment"}).
				AddRow(int64(42), int64(1000), int64(50), "consultation", ""))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`)).
			WithArgs(int64(1001)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		userID, applied, err := repo.PromotePreTransaction(context.Background(), 1001)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
		assert.False(t, applied)
	})
}

func TestExpireDueBonuses(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 8, 30, 0, 10, 0, 0, time.UTC)
	added := now.AddDate(0, -1, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, bonus, add_date, expire_date, flag_is_burned`)).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "bonus", "add_date", "expire_date", "flag_is_burned"}).
			AddRow(int64(1), int64(42), int64(200), added, now, false))

	bonuses, err := repo.ExpireDueBonuses(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	assert.Equal(t, int64(42), bonuses[0].UserID)
	assert.False(t, bonuses[0].Burned)
}

func TestComputeSpentInWindow(t *testing.T) {
	repo, mock := newMockRepo(t)
	from := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(ABS(SUM(bonus)), 0)`)).
		WithArgs(int64(42), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"spent"}).AddRow(int64(120)))

	spent, err := repo.ComputeSpentInWindow(context.Background(), 42, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(120), spent)
}

func TestMarkBurned(t *testing.T) {
	repo, mock := newMockRepo(t)
	// Повторная пометка затрагивает ноль строк и это не ошибка
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE expiration_bonus_movement`)).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.MarkBurned(context.Background(), 1))
}
