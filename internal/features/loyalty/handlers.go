// Package loyalty — handlers.go принимает HTTP-запросы бота.
// Обработчики тонкие: разбор запроса, вызов сервиса, JSON-ответ.
// Формат ответов сохранён тем, который бот уже умеет читать.
package loyalty

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

// Handler обслуживает маршруты /api/loyalty.
type Handler struct {
	service *Service
}

// NewHandler создаёт HTTP-обработчик лояльности.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes собирает маршруты лояльности.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/users", h.openAccount)
	r.Get("/users/{user_id}/balance", h.getBalance)
	r.Put("/users/{user_id}/balance", h.updateBalance)
	r.Post("/transactions", h.recordTransaction)
	r.Get("/users/{user_id}/transactions", h.getTransactions)
	r.Get("/users/{user_id}/transaction_count", h.getTransactionCount)
	r.Get("/users/{user_id}/total_spent", h.getTotalSpent)
	r.Post("/{promo_code}/use", h.usePromoCode)
	r.Put("/users/{user_id}/deduct_points", h.deductPoints)
	r.Get("/users/{user_id}/check_balance", h.checkBalance)
	r.Get("/users/{user_id}/referrer", h.getReferrer)
	r.Get("/users/{user_id}/promo_code", h.getPromoCode)
	r.Post("/users/{user_id}/generate_promo_code", h.generatePromoCode)
	r.Get("/stats", h.getStats)
	return r
}

type openAccountRequest struct {
	UserID     int64  `json:"user_id" validate:"required"`
	ReferrerID *int64 `json:"referrer_id"`
}

func (h *Handler) openAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	if err := h.service.OpenAccount(r.Context(), req.UserID, req.ReferrerID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "User added to loyalty system successfully")
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, balance)
}

func (h *Handler) updateBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	points, err := api.QueryInt64(r, "points")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	noTransaction := api.QueryBool(r, "no_transaction")

	if err := h.service.UpdateBalance(r.Context(), userID, points, noTransaction); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "User balance updated successfully")
}

type recordTransactionRequest struct {
	UserID         int64  `json:"user_id" validate:"required"`
	Amount         int64  `json:"amount"`
	Bonus          int64  `json:"bonus"`
	Service        string `json:"service"`
	Comment        string `json:"comment"`
	ExpirationDays *int   `json:"expiration_days"`
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	id, err := h.service.RecordTransaction(r.Context(), req.UserID, req.Amount, req.Bonus, req.Service, req.Comment, req.ExpirationDays)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"message":        "Transaction recorded successfully",
		"transaction_id": id,
	})
}

func (h *Handler) getTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	// limit не передан — вся история
	limit, err := api.QueryIntOptional(r, "limit")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	transactions, err := h.service.GetUserTransactions(r.Context(), userID, limit)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []*Transaction{}
	}
	api.JSON(w, http.StatusOK, transactions)
}

func (h *Handler) getTransactionCount(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	count, err := h.service.GetTransactionCount(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, count)
}

func (h *Handler) getTotalSpent(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	total, err := h.service.GetTotalSpent(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, total)
}

type usePromoCodeRequest struct {
	NewUserID *int64 `json:"new_user_id"`
}

func (h *Handler) usePromoCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "promo_code")

	// Тело необязательно, но ContentLength ненадёжен (chunked-запросы
	// приходят с -1): читаем всегда, пустое тело — это io.EOF
	var req usePromoCodeRequest
	if err := api.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, err.Error())
		return
	}

	referrerID, err := h.service.UsePromoCode(r.Context(), code, req.NewUserID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"message":     "Promo code used successfully",
		"referrer_id": referrerID,
	})
}

func (h *Handler) deductPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	points, err := api.QueryInt64(r, "points")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	newBalance, err := h.service.DeductPoints(r.Context(), userID, points)
	if errors.Is(err, common.ErrInsufficientBalance) {
		// Штатный исход: текущий баланс отдаём для показа пользователю
		api.JSON(w, http.StatusBadRequest, map[string]any{
			"detail":          "Insufficient balance",
			"current_balance": newBalance,
		})
		return
	}
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"message":     "Points deducted successfully",
		"new_balance": newBalance,
	})
}

func (h *Handler) checkBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	points, err := api.QueryInt64(r, "points")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	sufficient, balance, err := h.service.CheckBalance(r.Context(), userID, points)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"sufficient":      sufficient,
		"current_balance": balance,
	})
}

func (h *Handler) getReferrer(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	referrer, err := h.service.GetReferrerID(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, referrer)
}

func (h *Handler) getPromoCode(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	code, err := h.service.GetPromoCode(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, code)
}

func (h *Handler) generatePromoCode(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	code, err := h.service.GeneratePromoCode(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, code)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, stats)
}
