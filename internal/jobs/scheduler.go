// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночное сгорание бонусов и
// ежемесячный сброс отметок рассылки прогнозов.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/features/forecast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/loyalty"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron            *cron.Cron
	loyaltyService  *loyalty.Service
	forecastService *forecast.Service
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(loyaltyService *loyalty.Service, forecastService *forecast.Service) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:            c,
		loyaltyService:  loyaltyService,
		forecastService: forecastService,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ночное сгорание бонусов в 00:10 по Москве
	s.cron.AddFunc("10 0 * * *", func() {
		log.Info("[CRON] Сгорание просроченных бонусов")
		burned, err := s.loyaltyService.BurnExpired(ctx, time.Now())
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка сгорания бонусов")
			return
		}
		log.WithField("count", burned).Info("[CRON] Сгорание бонусов завершено")
	})

	// Сброс отметок месячной рассылки первого числа в 00:00
	s.cron.AddFunc("0 0 1 * *", func() {
		log.Info("[CRON] Сброс отметок месячной рассылки")
		if err := s.forecastService.ResetMonth(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка сброса рассылки")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
