// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// обработчики и собирает всё в один HTTP-сервер с планировщиком.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sozdatel3/server-for-arcanBot/internal/config"
	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/broadcast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/city"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/cover"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/forecast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/loyalty"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/payments"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/stats"
	"github.com/sozdatel3/server-for-arcanBot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Handler   http.Handler
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	loyaltyRepo := loyalty.NewRepository(pool)
	cityRepo := city.NewRepository(pool)
	coverRepo := cover.NewRepository(pool)
	forecastRepo := forecast.NewRepository(pool)
	broadcastRepo := broadcast.NewRepository(pool)

	// === 3. Сервисы ===
	loyaltyService := loyalty.NewService(loyaltyRepo, cfg)
	cityService := city.NewService(cityRepo, cfg)
	forecastService := forecast.NewService(forecastRepo)
	coverService := cover.NewService(coverRepo, forecastService, loyaltyService, cfg)
	statsService := stats.NewService(loyaltyService, cityService, cfg)

	signer := payments.NewSigner(cfg.RobokassaLogin, cfg.ActivePassword1(), cfg.ActivePassword2())
	paymentsService := payments.NewService(signer, cityService, loyaltyService)

	// === 4. Обработчики ===
	loyaltyHandler := loyalty.NewHandler(loyaltyService)
	cityHandler := city.NewHandler(cityService, loyaltyService)
	coverHandler := cover.NewHandler(coverService)
	forecastHandler := forecast.NewHandler(forecastService)
	broadcastHandler := broadcast.NewHandler(broadcastRepo)
	statsHandler := stats.NewHandler(statsService)
	paymentsHandler := payments.NewHandler(paymentsService)

	// === 5. HTTP-маршруты ===
	router := newRouter(cfg, pool, routes{
		loyalty:   loyaltyHandler,
		city:      cityHandler,
		cover:     coverHandler,
		forecast:  forecastHandler,
		broadcast: broadcastHandler,
		stats:     statsHandler,
		payments:  paymentsHandler,
	})

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(loyaltyService, forecastService)

	return &App{
		Handler:   router,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}
