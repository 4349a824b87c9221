package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
	"github.com/sozdatel3/server-for-arcanBot/internal/api/middleware"
	"github.com/sozdatel3/server-for-arcanBot/internal/config"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/broadcast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/city"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/cover"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/forecast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/loyalty"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/payments"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/stats"
)

type routes struct {
	loyalty   *loyalty.Handler
	city      *city.Handler
	cover     *cover.Handler
	forecast  *forecast.Handler
	broadcast *broadcast.Handler
	stats     *stats.Handler
	payments  *payments.Handler
}

// newRouter собирает все маршруты под префиксом /api.
// Статистика и рассылки закрыты админским паролем.
func newRouter(cfg *config.Config, pool *pgxpool.Pool, h routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		api.Message(w, http.StatusOK, "Сервер арканов работает")
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			api.Detail(w, http.StatusServiceUnavailable, "БД недоступна")
			return
		}
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Mount("/loyalty", h.loyalty.Routes())
		r.Mount("/cities", h.city.Routes())
		r.Mount("/covers", h.cover.Routes())
		r.Mount("/forecasts", h.forecast.Routes())
		r.Mount("/payments", h.payments.Routes())
		r.Mount("/scheduler", h.loyalty.SchedulerRoutes())

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AdminPasswordHash))
			r.Mount("/statistics", h.stats.Routes())
			r.Mount("/broadcasts", h.broadcast.Routes())
		})
	})

	return r
}
