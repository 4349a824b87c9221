package city

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
)

// InvoiceLedger — единое пространство номеров счетов и пред-транзакции.
// Реализуется сервисом лояльности, у которого живёт последовательность.
type InvoiceLedger interface {
	RecordPreTransaction(ctx context.Context, userID, amount, bonus int64, service, comment string) (int64, error)
	AllocateTransactionID(ctx context.Context) (int64, error)
	LastTransactionID(ctx context.Context) (int64, error)
}

type Handler struct {
	service *Service
	ledger  InvoiceLedger
}

func NewHandler(service *Service, ledger InvoiceLedger) *Handler {
	return &Handler{service: service, ledger: ledger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/users", h.handleRegister)
	r.Get("/users/{user_id}/first_time", h.handleFirstTime)
	r.Get("/users/{user_id}/free_tries", h.handleFreeTries)
	r.Post("/users/{user_id}/use_free_try", h.handleUseFreeTry)
	r.Get("/users/{user_id}/can_check", h.handleCanCheck)
	r.Get("/users/{user_id}/unlimited", h.handleHasUnlimited)
	r.Post("/users/{user_id}/cities", h.handleAddCheckedCity)
	r.Get("/users/{user_id}/cities", h.handleCheckedCities)
	r.Post("/transactions", h.handleRecordTransaction)
	r.Get("/transactions/last", h.handleLastTransaction)
	r.Get("/transactions/last_id", h.handleLastTransactionID)
	r.Post("/transactions/allocate", h.handleAllocateTransactionID)
	r.Post("/pre_transactions", h.handleRecordPreTransaction)
	r.Get("/users/{user_id}/transactions", h.handleUserTransactions)
	return r
}

type registerRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.Register(r.Context(), req.UserID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusCreated, "Пользователь зарегистрирован")
}

func (h *Handler) handleFirstTime(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	first, err := h.service.IsFirstTime(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"first_time": first})
}

func (h *Handler) handleFreeTries(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	left, err := h.service.FreeTriesLeft(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int{"free_tries": left})
}

func (h *Handler) handleUseFreeTry(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	used, err := h.service.UseFreeTry(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"used": used})
}

func (h *Handler) handleCanCheck(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	allowed, err := h.service.CanCheck(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"can_check": allowed})
}

func (h *Handler) handleHasUnlimited(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	unlimited, err := h.service.HasUnlimited(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"unlimited": unlimited})
}

type checkedCityRequest struct {
	City string `json:"city" validate:"required"`
}

func (h *Handler) handleAddCheckedCity(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	var req checkedCityRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.AddCheckedCity(r.Context(), userID, req.City); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Город добавлен")
}

func (h *Handler) handleCheckedCities(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	cities, err := h.service.CheckedCities(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}
	api.JSON(w, http.StatusOK, map[string][]string{"cities": cities})
}

type cityTransactionRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req cityTransactionRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	id, err := h.service.RecordTransaction(r.Context(), req.UserID, req.Amount)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, map[string]any{
		"message":    "Транзакция создана",
		"invoice_id": id,
	})
}

func (h *Handler) handleLastTransaction(w http.ResponseWriter, r *http.Request) {
	last, err := h.service.LastTransaction(r.Context())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if last == nil {
		api.Detail(w, http.StatusNotFound, "Транзакций ещё не было")
		return
	}
	api.JSON(w, http.StatusOK, last)
}

func (h *Handler) handleLastTransactionID(w http.ResponseWriter, r *http.Request) {
	id, err := h.ledger.LastTransactionID(r.Context())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"last_transaction_id": id})
}

func (h *Handler) handleAllocateTransactionID(w http.ResponseWriter, r *http.Request) {
	id, err := h.ledger.AllocateTransactionID(r.Context())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"invoice_id": id})
}

type preTransactionRequest struct {
	UserID  int64  `json:"user_id" validate:"required"`
	Amount  int64  `json:"amount" validate:"min=0"`
	Bonus   int64  `json:"bonus"`
	Service string `json:"service" validate:"required"`
	Comment string `json:"comment"`
}

// handleRecordPreTransaction создаёт отложенную транзакцию лояльности:
// номер счёта выдаётся сразу, запись станет транзакцией после
// подтверждения оплаты кассой.
func (h *Handler) handleRecordPreTransaction(w http.ResponseWriter, r *http.Request) {
	var req preTransactionRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	id, err := h.ledger.RecordPreTransaction(r.Context(), req.UserID, req.Amount, req.Bonus, req.Service, req.Comment)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, map[string]any{
		"message":    "Пред-транзакция создана",
		"invoice_id": id,
	})
}

func (h *Handler) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	transactions, err := h.service.UserTransactions(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	api.JSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}
