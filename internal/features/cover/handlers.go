package cover

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/users", h.handleInitUser)
	r.Get("/users/{user_id}", h.handleGetUser)
	r.Post("/users/{user_id}/like_last", h.handleLikeLast)
	r.Post("/users/{user_id}/paid", h.handleMarkPaid)
	r.Post("/users/{user_id}/purchase", h.handlePurchase)
	r.Post("/users/{user_id}/grant", h.handleGrant)
	r.Get("/users/{user_id}/attempts", h.handleAttempts)
	r.Post("/users/{user_id}/use", h.handleUse)
	r.Get("/users/{user_id}/description", h.handleDescription)
	return r
}

type initUserRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
	Arcan  int   `json:"arcan" validate:"required,min=1,max=22"`
}

func (h *Handler) handleInitUser(w http.ResponseWriter, r *http.Request) {
	var req initUserRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.InitUser(r.Context(), req.UserID, req.Arcan); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Пользователь сохранён")
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if u == nil {
		api.Detail(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	api.JSON(w, http.StatusOK, u)
}

type likeLastRequest struct {
	Liked bool `json:"liked"`
}

func (h *Handler) handleLikeLast(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	var req likeLastRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.SetLikeLast(r.Context(), userID, req.Liked); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Реакция сохранена")
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	if err := h.service.MarkPaid(r.Context(), userID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Оплата отмечена")
}

type purchaseRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	var req purchaseRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	txID, err := h.service.PurchaseAttempts(r.Context(), userID, req.Amount)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"message":        "Покупка проведена",
		"transaction_id": txID,
	})
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	if err := h.service.GrantPaidAttempts(r.Context(), userID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Попытки зачислены")
}

func (h *Handler) handleAttempts(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	attempts, err := h.service.Attempts(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int{"attempts": attempts})
}

func (h *Handler) handleUse(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	used, err := h.service.UseAttempt(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"used": used})
}

func (h *Handler) handleDescription(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	desc, err := h.service.ArcanDescription(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if desc == nil {
		api.Detail(w, http.StatusNotFound, "Описание не найдено")
		return
	}
	api.JSON(w, http.StatusOK, desc)
}
