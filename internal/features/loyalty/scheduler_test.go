package loyalty

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/config"
)

func newSchedulerHandler(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	svc := NewService(NewRepository(mock), &config.Config{})
	return NewHandler(svc).SchedulerRoutes(), mock
}

func TestSpentInWindowEndpoint(t *testing.T) {
	handler, mock := newSchedulerHandler(t)

	// Границы окна разбираются в московском поясе, ожидаемые аргументы
	// строятся тем же разбором, что и в обработчике
	fromRaw, toRaw := "2026-07-01 00:00:00", "2026-08-01 00:00:00"
	from, err := common.ParseDateTime(fromRaw)
	require.NoError(t, err)
	to, err := common.ParseDateTime(toRaw)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(ABS(SUM(bonus)), 0)`)).
		WithArgs(int64(42), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"spent"}).AddRow(int64(120)))

	q := url.Values{}
	q.Set("from", fromRaw)
	q.Set("to", toRaw)
	req := httptest.NewRequest(http.MethodGet, "/users/42/spent_in_window?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(120), body["spent"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSpentInWindowEndpointBadBounds(t *testing.T) {
	handler, _ := newSchedulerHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/users/42/spent_in_window?from=вчера", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkBurnedEndpoint(t *testing.T) {
	handler, mock := newSchedulerHandler(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET flag_is_burned = TRUE`)).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	req := httptest.NewRequest(http.MethodPost, "/bonuses/5/mark_burned", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpiredBonusesEndpoint(t *testing.T) {
	handler, mock := newSchedulerHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM expiration_bonus_movement`)).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "bonus", "add_date", "expire_date", "flag_is_burned"}).
			AddRow(int64(5), int64(42), int64(200), time.Now().AddDate(0, -1, 0), time.Now(), false))

	req := httptest.NewRequest(http.MethodGet, "/expired_bonuses", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var bonuses []ExpirationBonus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bonuses))
	require.Len(t, bonuses, 1)
	assert.Equal(t, int64(200), bonuses[0].Bonus)
	require.NoError(t, mock.ExpectationsWereMet())
}
