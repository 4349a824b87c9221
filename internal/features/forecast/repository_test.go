package forecast

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

func TestSetField(t *testing.T) {
	t.Run("разрешённое поле", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE monthly_forecasts SET arcan = $1 WHERE user_id = $2`)).
			WithArgs(7, int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetField(context.Background(), 42, "arcan", 7))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("произвольное имя поля отвергается до запроса", func(t *testing.T) {
		_, repo := newMockRepo(t)

		err := repo.SetField(context.Background(), 42, "user_id = 0; DROP TABLE loyalty", true)
		require.ErrorIs(t, err, ErrUnknownField)
	})
}

func TestMissingUsers(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM unnest($1::bigint[]) AS u(id)`)).
		WithArgs([]int64{10, 20, 30}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(20)).AddRow(int64(30)))

	missing, err := repo.MissingUsers(context.Background(), []int64{10, 20, 30})
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30}, missing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribeUpsert(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (user_id) DO UPDATE SET subscription = TRUE`)).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Subscribe(context.Background(), 42))
	require.NoError(t, mock.ExpectationsWereMet())
}
