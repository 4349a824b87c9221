package loyalty

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozdatel3/server-for-arcanBot/internal/config"
)

func newTestHandler(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	svc := NewService(NewRepository(mock), &config.Config{ReferralBonus: 500})
	return NewHandler(svc).Routes(), mock
}

func TestDeductPointsEndpoint(t *testing.T) {
	selectForUpdate := regexp.QuoteMeta(`SELECT balance FROM loyalty WHERE user_id = $1 FOR UPDATE`)

	t.Run("нехватка баллов отдаёт текущий баланс", func(t *testing.T) {
		handler, mock := newTestHandler(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(20)))
		mock.ExpectRollback()

		req := httptest.NewRequest(http.MethodPut, "/users/42/deduct_points?points=30", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Insufficient balance", body["detail"])
		assert.EqualValues(t, 20, body["current_balance"])
	})

	t.Run("успешное списание", func(t *testing.T) {
		handler, mock := newTestHandler(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(100)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty`)).
			WithArgs(int64(42), int64(30)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		req := httptest.NewRequest(http.MethodPut, "/users/42/deduct_points?points=30", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.EqualValues(t, 70, body["new_balance"])
	})

	t.Run("нечисловые баллы отклоняются", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodPut, "/users/42/deduct_points?points=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCheckBalanceEndpoint(t *testing.T) {
	handler, mock := newTestHandler(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM loyalty WHERE user_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(50)))

	req := httptest.NewRequest(http.MethodGet, "/users/42/check_balance?points=60", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["sufficient"])
	assert.EqualValues(t, 50, body["current_balance"])
}

func TestUsePromoCodeEndpointChunkedBody(t *testing.T) {
	handler, mock := newTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM loyalty WHERE promo_code = $1`)).
		WithArgs("PROMO42").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO loyalty (user_id)`)).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions (user_id, amount, bonus, service, comment, date)`)).
		WithArgs(int64(42), int64(0), int64(500), ServiceReferral, "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1005)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE loyalty`)).
		WithArgs(int64(42), int64(500), int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ownerCode := "PROMO42"
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT promo_code FROM loyalty WHERE user_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"promo_code"}).AddRow(&ownerCode))
	// Приглашённый из тела запроса дошёл до записи счёта
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO loyalty (user_id, referrer_id)`)).
		WithArgs(int64(43), int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// Обёртка без Len() даёт ContentLength -1, как у chunked-запроса
	body := io.NopCloser(strings.NewReader(`{"new_user_id": 43}`))
	req := httptest.NewRequest(http.MethodPost, "/PROMO42/use", body)
	require.Equal(t, int64(-1), req.ContentLength)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 42, resp["referrer_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransactionEndpointValidation(t *testing.T) {
	handler, mock := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions",
		strings.NewReader(`{"user_id": 42, "amount": -100, "bonus": 0, "service": "consultation"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Валидация отработала до обращения к базе
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
