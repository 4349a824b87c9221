package forecast

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/users/{user_id}/subscribe", h.handleSubscribe)
	r.Post("/users/{user_id}/unsubscribe", h.handleUnsubscribe)
	r.Get("/users/{user_id}/subscription", h.handleSubscription)
	r.Put("/users/{user_id}/arcan", h.handleSetArcan)
	r.Get("/subscribers", h.handleSubscribers)
	r.Post("/missing_users", h.handleMissingUsers)
	r.Put("/users/{user_id}/useful_time", h.handleScheduleUseful)
	r.Get("/due_useful", h.handleDueUseful)
	r.Post("/users/{user_id}/useful_sent", h.handleMarkUsefulSent)
	r.Post("/descriptions", h.handleSaveDescription)
	r.Get("/descriptions/{arcan}", h.handleDescription)
	return r
}

type subscribeRequest struct {
	Arcan int `json:"arcan" validate:"min=0,max=22"`
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	// Тело необязательно: подписка без аркана тоже валидна.
	// ContentLength ненадёжен (chunked-запросы приходят с -1),
	// поэтому читаем всегда, пустое тело — это io.EOF
	var req subscribeRequest
	if err := api.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.Subscribe(r.Context(), userID, req.Arcan); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Подписка оформлена")
}

type setArcanRequest struct {
	Arcan int `json:"arcan" validate:"required,min=1,max=22"`
}

func (h *Handler) handleSetArcan(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	var req setArcanRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.SetArcan(r.Context(), userID, req.Arcan); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Аркан сохранён")
}

type missingUsersRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1"`
}

func (h *Handler) handleMissingUsers(w http.ResponseWriter, r *http.Request) {
	var req missingUsersRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	ids, err := h.service.MissingUsers(r.Context(), req.UserIDs)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	api.JSON(w, http.StatusOK, map[string][]int64{"missing": ids})
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	if err := h.service.Unsubscribe(r.Context(), userID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Подписка отключена")
}

func (h *Handler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	subscribed, err := h.service.IsSubscribed(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"subscription": subscribed})
}

func (h *Handler) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Subscribers(r.Context())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	api.JSON(w, http.StatusOK, map[string][]int64{"subscribers": ids})
}

type usefulTimeRequest struct {
	Time string `json:"time" validate:"required"`
}

func (h *Handler) handleScheduleUseful(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	var req usefulTimeRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	at, err := common.ParseDateTime(req.Time)
	if err != nil {
		api.BadRequest(w, "некорректный формат времени")
		return
	}
	if err := h.service.ScheduleUseful(r.Context(), userID, at); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Время рассылки назначено")
}

func (h *Handler) handleDueUseful(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.DueUseful(r.Context(), time.Now())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	api.JSON(w, http.StatusOK, map[string][]int64{"users": ids})
}

func (h *Handler) handleMarkUsefulSent(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	if err := h.service.MarkUsefulSent(r.Context(), userID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Отмечено")
}

type descriptionRequest struct {
	Arcan       int    `json:"arcan" validate:"required,min=1,max=22"`
	Month       string `json:"month"`
	Description string `json:"description" validate:"required"`
}

func (h *Handler) handleSaveDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.SaveDescription(r.Context(), req.Arcan, req.Month, req.Description); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Описание сохранено")
}

func (h *Handler) handleDescription(w http.ResponseWriter, r *http.Request) {
	arcan, err := api.URLInt64(r, "arcan")
	if err != nil {
		api.BadRequest(w, "некорректный номер аркана")
		return
	}
	month := r.URL.Query().Get("month")
	description, err := h.service.Description(r.Context(), int(arcan), month)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if description == nil {
		api.Detail(w, http.StatusNotFound, "Описание не найдено")
		return
	}
	api.JSON(w, http.StatusOK, description)
}
