// Package stats собирает сводную статистику для админов: агрегаты
// программы лояльности, новых пользователей и транзакции за период,
// выручку по совместимости с городом, потраченные бесплатные попытки
// и сгоревшие бонусы.
package stats

import (
	"context"
	"time"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/config"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/city"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/loyalty"
)

// Готовые периоды сводки.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

// Report — сводка за период. Чаевые считаются как превышение суммы
// оплаты над базовой ценой проверки, отрицательной разница не бывает.
type Report struct {
	LoyaltyUsers       int64 `json:"loyalty_users"`
	LoyaltyNewUsers    int64 `json:"loyalty_new_users"`
	LoyaltyBalance     int64 `json:"loyalty_balance"`
	LoyaltySpent       int64 `json:"loyalty_spent"`
	TransactionCount   int64 `json:"transaction_count"`
	TransactionRevenue int64 `json:"transaction_revenue"`
	BurnedBonuses      int64 `json:"burned_bonuses"`
	FreeTriesConsumed  int64 `json:"free_tries_consumed"`
	CityPayments       int64 `json:"city_payments"`
	CityRevenue        int64 `json:"city_revenue"`
	CityBaseRevenue    int64 `json:"city_base_revenue"`
	CityTips           int64 `json:"city_tips"`
}

type Service struct {
	loyalty *loyalty.Service
	city    *city.Service
	cfg     *config.Config
}

func NewService(loyaltySvc *loyalty.Service, citySvc *city.Service, cfg *config.Config) *Service {
	return &Service{loyalty: loyaltySvc, city: citySvc, cfg: cfg}
}

// PeriodBounds переводит именованный период в левую границу окна.
// Для "all" и пустой строки границ нет. Отсчёт по московскому времени.
func PeriodBounds(period string, now time.Time) (from *time.Time, ok bool) {
	now = now.In(common.MoscowLocation())
	switch period {
	case PeriodDay:
		t := now.AddDate(0, 0, -1)
		return &t, true
	case PeriodWeek:
		t := now.AddDate(0, 0, -7)
		return &t, true
	case PeriodMonth:
		t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &t, true
	case PeriodAll, "":
		return nil, true
	}
	return nil, false
}

// Build собирает сводку. Границы периода необязательны; агрегаты
// баланса лояльности всегда накопительные, остальные счётчики
// считаются в окне.
func (s *Service) Build(ctx context.Context, from, to *time.Time) (*Report, error) {
	loyaltyStats, err := s.loyalty.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	newUsers, err := s.loyalty.NewUsersCount(ctx, from, to)
	if err != nil {
		return nil, err
	}

	txCount, txRevenue, err := s.loyalty.TransactionTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}

	burned, err := s.loyalty.BurnedBonusTotal(ctx, from, to)
	if err != nil {
		return nil, err
	}

	tries, err := s.city.FreeTriesConsumed(ctx)
	if err != nil {
		return nil, err
	}

	count, total, err := s.city.ConfirmedTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}

	amounts, err := s.city.ConfirmedAmounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	basePrice := s.cfg.CityBasePrice
	var tips int64
	for _, amount := range amounts {
		if amount > basePrice {
			tips += amount - basePrice
		}
	}

	return &Report{
		LoyaltyUsers:       loyaltyStats.UsersCount,
		LoyaltyNewUsers:    newUsers,
		LoyaltyBalance:     loyaltyStats.TotalBalance,
		LoyaltySpent:       loyaltyStats.TotalSpent,
		TransactionCount:   txCount,
		TransactionRevenue: txRevenue,
		BurnedBonuses:      burned,
		FreeTriesConsumed:  tries,
		CityPayments:       count,
		CityRevenue:        total,
		CityBaseRevenue:    count * basePrice,
		CityTips:           tips,
	}, nil
}
