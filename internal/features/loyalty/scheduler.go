// Package loyalty — scheduler.go отдаёт pull-эндпоинты для внешнего
// планировщика бота: бот сам забирает просроченные бонусы, считает окна
// трат и подтверждает обработку, не дожидаясь ночного крона.
package loyalty

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

// SchedulerRoutes собирает маршруты /api/scheduler.
func (h *Handler) SchedulerRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/expired_bonuses", h.getExpiredBonuses)
	r.Get("/users/{user_id}/spent_in_window", h.getSpentInWindow)
	r.Post("/bonuses/{bonus_id}/mark_burned", h.markBurned)
	r.Post("/burn_expired", h.burnExpired)
	return r
}

func (h *Handler) getExpiredBonuses(w http.ResponseWriter, r *http.Request) {
	bonuses, err := h.service.ExpireDueBonuses(r.Context(), time.Now())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	if bonuses == nil {
		bonuses = []*ExpirationBonus{}
	}
	api.JSON(w, http.StatusOK, bonuses)
}

func (h *Handler) getSpentInWindow(w http.ResponseWriter, r *http.Request) {
	userID, err := api.URLInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	from, err := common.ParseDateTime(r.URL.Query().Get("from"))
	if err != nil {
		api.BadRequest(w, "некорректный параметр from")
		return
	}
	to, err := common.ParseDateTime(r.URL.Query().Get("to"))
	if err != nil {
		api.BadRequest(w, "некорректный параметр to")
		return
	}

	spent, err := h.service.ComputeSpentInWindow(r.Context(), userID, from, to)
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"spent": spent})
}

func (h *Handler) markBurned(w http.ResponseWriter, r *http.Request) {
	bonusID, err := api.URLInt64(r, "bonus_id")
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if err := h.service.MarkBurned(r.Context(), bonusID); err != nil {
		api.ServiceError(w, err)
		return
	}
	api.Message(w, http.StatusOK, "Bonus marked as burned")
}

// burnExpired запускает полный проход сгорания по запросу бота.
func (h *Handler) burnExpired(w http.ResponseWriter, r *http.Request) {
	burned, err := h.service.BurnExpired(r.Context(), time.Now())
	if err != nil {
		api.ServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int{"burned": burned})
}
