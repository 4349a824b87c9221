package stats

import (
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
	r.Get("/", h.handleReport)
	return r
}

// handleReport отдаёт сводку. Период задаётся либо пресетом
// period=day|week|month|all, либо явными границами from и to в формате
// "2006-01-02 15:04:05". Явные границы имеют приоритет над пресетом.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	from, err := parseBound(r.URL.Query().Get("from"))
	if err != nil {
		api.BadRequest(w, "некорректный параметр from")
		return
	}
	to, err := parseBound(r.URL.Query().Get("to"))
	if err != nil {
		api.BadRequest(w, "некорректный параметр to")
		return
	}
	if from == nil && to == nil {
		preset, ok := PeriodBounds(r.URL.Query().Get("period"), time.Now())
		if !ok {
			api.BadRequest(w, "некорректный параметр period")
			return
		}
		from = preset
	}

	report, err := h.service.Build(r.Context(), from, to)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, report)
}

func parseBound(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := common.ParseDateTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
