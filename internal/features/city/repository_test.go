package city

import (
	"context"
	"regexp"
	"testing"

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

func TestRegister(t *testing.T) {
	insertQuery := regexp.QuoteMeta(`INSERT INTO city (user_id, have_free_try) VALUES ($1, $2)`)

	t.Run("новый пользователь", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(insertQuery).
			WithArgs(int64(42), 2).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Register(context.Background(), 42, 2))
	})

	t.Run("повторная регистрация", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(insertQuery).
			WithArgs(int64(42), 2).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Register(context.Background(), 42, 2)
		require.ErrorIs(t, err, common.ErrAlreadyInCity)
	})
}

func TestUseFreeTry(t *testing.T) {
	updateQuery := regexp.QuoteMeta(`UPDATE city SET have_free_try = have_free_try - 1 WHERE user_id = $1 AND have_free_try > 0`)

	t.Run("попытка списывается", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(updateQuery).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		used, err := repo.UseFreeTry(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("нулевой счётчик в минус не уходит", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		// Условие have_free_try > 0 не пропустило строку
		mock.ExpectExec(updateQuery).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		used, err := repo.UseFreeTry(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, used)
	})
}

func TestConfirmTransaction(t *testing.T) {
	selectQuery := regexp.QuoteMeta(`SELECT user_id, status FROM city_transactions WHERE id = $1 FOR UPDATE`)

	t.Run("первое подтверждение применяется", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(1001)).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "status"}).AddRow(int64(42), StatusPending))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE city_transactions SET status = $1, pay_date = NOW() WHERE id = $2`)).
			WithArgs(StatusConfirmed, int64(1001)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		userID, applied, err := repo.ConfirmTransaction(context.Background(), 1001)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
		assert.True(t, applied)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("повторное подтверждение ничего не меняет", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(1001)).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "status"}).AddRow(int64(42), StatusConfirmed))
		mock.ExpectCommit()

		userID, applied, err := repo.ConfirmTransaction(context.Background(), 1001)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
		assert.False(t, applied)
	})

	t.Run("неизвестный счёт", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(9999)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, _, err := repo.ConfirmTransaction(context.Background(), 9999)
		require.ErrorIs(t, err, common.ErrTransactionNotFound)
	})
}

func TestAddCheckedCity(t *testing.T) {
	selectQuery := regexp.QuoteMeta(`SELECT cities_checked FROM city WHERE user_id = $1 FOR UPDATE`)
	updateQuery := regexp.QuoteMeta(`UPDATE city SET cities_checked = $1 WHERE user_id = $2`)

	t.Run("город добавляется к списку", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		checked := "Москва"
		mock.ExpectBegin()
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"cities_checked"}).AddRow(&checked))
		mock.ExpectExec(updateQuery).
			WithArgs("Москва,Казань", int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.AddCheckedCity(context.Background(), 42, "Казань"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("повтор не дублируется", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		checked := "Москва,Казань"
		mock.ExpectBegin()
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"cities_checked"}).AddRow(&checked))
		mock.ExpectCommit()

		require.NoError(t, repo.AddCheckedCity(context.Background(), 42, "казань"))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSplitCities(t *testing.T) {
	assert.Nil(t, splitCities(nil))

	empty := ""
	assert.Nil(t, splitCities(&empty))

	raw := "Москва, Казань ,,Тверь"
	assert.Equal(t, []string{"Москва", "Казань", "Тверь"}, splitCities(&raw))
}
