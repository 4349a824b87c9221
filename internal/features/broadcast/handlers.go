package broadcast

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleSummaries)
	r.Post("/{name}/recipients", h.handleAddRecipients)
	r.Get("/{name}/pending", h.handlePending)
	r.Post("/{name}/delivered/{user_id}", h.handleMarkDelivered)
	r.Post("/{name}/reset", h.handleReset)
	return r
}

type recipientsRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1"`
}

func (h *Handler) handleAddRecipients(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req recipientsRequest
	if err := api.Decode(r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.repo.AddRecipients(r.Context(), name, req.UserIDs); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusCreated, "Получатели добавлены")
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ids, err := h.repo.PendingRecipients(r.Context(), name)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	api.JSON(w, http.StatusOK, map[string][]int64{"users": ids})
}

func (h *Handler) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	if err := h.repo.MarkDelivered(r.Context(), name, userID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Доставка отмечена")
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reset, err := h.repo.Reset(r.Context(), name)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"reset": reset})
}

func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.repo.Summaries(r.Context())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	api.JSON(w, http.StatusOK, map[string][]Summary{"broadcasts": summaries})
}
