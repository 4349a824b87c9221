package cover

import (
	"context"
	"regexp"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestInitUser(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cover_users (user_id, arcan)`)).
		WithArgs(int64(42), 7).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InitUser(context.Background(), 42, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser(t *testing.T) {
	t.Run("известный пользователь", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		liked := true
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, arcan, like_last, has_paid, attempts_left`)).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "arcan", "like_last", "has_paid", "attempts_left"}).
				AddRow(int64(1), int64(42), 7, &liked, true, 3))

		u, err := repo.GetUser(context.Background(), 42)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, 7, u.Arcan)
		require.NotNil(t, u.LikeLast)
		assert.True(t, *u.LikeLast)
		assert.True(t, u.HasPaid)
		assert.Equal(t, 3, u.AttemptsLeft)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("незнакомый пользователь", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, arcan, like_last, has_paid, attempts_left`)).
			WithArgs(int64(99)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "arcan", "like_last", "has_paid", "attempts_left"}))

		u, err := repo.GetUser(context.Background(), 99)
		require.NoError(t, err)
		assert.Nil(t, u)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkPaid(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET has_paid = TRUE, attempts_left = cover_users.attempts_left + $2`)).
		WithArgs(int64(42), 10).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.MarkPaid(context.Background(), 42, 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUseAttempt(t *testing.T) {
	t.Run("есть попытки", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE cover_users SET attempts_left = attempts_left - 1 WHERE user_id = $1 AND attempts_left > 0`)).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		used, err := repo.UseAttempt(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, used)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("попыток нет", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(regexp.QuoteMeta(`AND attempts_left > 0`)).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		used, err := repo.UseAttempt(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, used)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
