package cover

import (
	"context"
	"regexp"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozdatel3/server-for-arcanBot/internal/config"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/forecast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/loyalty"
)

type fakeDescriber struct {
	byArcan map[int]*forecast.Description
}

func (f *fakeDescriber) Description(_ context.Context, arcan int, _ string) (*forecast.Description, error) {
	return f.byArcan[arcan], nil
}

type fakeLedger struct {
	userID  int64
	amount  int64
	service string
	nextID  int64
}

func (f *fakeLedger) RecordTransaction(_ context.Context, userID, amount, _ int64, service, _ string, _ *int) (int64, error) {
	f.userID = userID
	f.amount = amount
	f.service = service
	return f.nextID, nil
}

func TestPurchaseAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	ledger := &fakeLedger{nextID: 1042}
	cfg := &config.Config{CoverPaidAttempts: 10}
	svc := NewService(NewRepository(mock), &fakeDescriber{}, ledger, cfg)

	mock.ExpectExec(regexp.QuoteMeta(`SET has_paid = TRUE, attempts_left = cover_users.attempts_left + $2`)).
		WithArgs(int64(42), 10).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	txID, err := svc.PurchaseAttempts(context.Background(), 42, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1042), txID)
	assert.Equal(t, int64(42), ledger.userID)
	assert.Equal(t, int64(500), ledger.amount)
	assert.Equal(t, loyalty.ServiceCoverPayment, ledger.service)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArcanDescription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	describer := &fakeDescriber{byArcan: map[int]*forecast.Description{
		7: {Arcan: 7, Month: "2026-08", Description: "текст"},
	}}
	svc := NewService(NewRepository(mock), describer, &fakeLedger{}, &config.Config{})

	t.Run("описание находится по аркану пользователя", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, arcan, like_last, has_paid, attempts_left`)).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "arcan", "like_last", "has_paid", "attempts_left"}).
				AddRow(int64(1), int64(42), 7, (*bool)(nil), false, 0))

		desc, err := svc.ArcanDescription(context.Background(), 42, "")
		require.NoError(t, err)
		require.NotNil(t, desc)
		assert.Equal(t, "текст", desc.Description)
	})

	t.Run("незнакомый пользователь без описания", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, arcan, like_last, has_paid, attempts_left`)).
			WithArgs(int64(99)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "arcan", "like_last", "has_paid", "attempts_left"}))

		desc, err := svc.ArcanDescription(context.Background(), 99, "")
		require.NoError(t, err)
		assert.Nil(t, desc)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
