// Package loyalty — service.go содержит бизнес-логику программы
// лояльности: валидация входа до обращения к базе, размер
// реферального бонуса, логирование движений.
package loyalty

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/config"
)

// Service управляет программой лояльности.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

// NewService создаёт сервис лояльности.
func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// OpenAccount заводит счёт. ErrAccountExists — штатный исход
// («вы уже зарегистрированы»), не системный сбой.
func (s *Service) OpenAccount(ctx context.Context, userID int64, referrerID *int64) error {
	return s.repo.CreateAccount(ctx, userID, referrerID)
}

// GetBalance возвращает баланс (0 для неизвестных пользователей).
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// RecordTransaction проводит транзакцию. Валидация — до любого
// обращения к базе: отрицательная сумма и неположительный срок
// сгорания отклоняются сразу, без молчаливой коррекции.
// amount может быть нулевым (чистое начисление бонуса),
// bonus — любого знака (+начисление, -списание).
func (s *Service) RecordTransaction(ctx context.Context, userID, amount, bonus int64, service, comment string, expirationDays *int) (int64, error) {
	if amount < 0 {
		return 0, common.ErrInvalidAmount
	}
	if expirationDays != nil && *expirationDays <= 0 {
		return 0, common.ErrInvalidExpiration
	}

	id, err := s.repo.RecordTransaction(ctx, userID, amount, bonus, service, comment, expirationDays)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"tx_id":   id,
		"amount":  amount,
		"bonus":   bonus,
		"service": service,
	}).Info("Транзакция проведена")
	return id, nil
}

// DeductPoints списывает баллы. Возвращает баланс после списания;
// при нехватке — текущий баланс и ErrInsufficientBalance (для
// показа пользователю), счёт не меняется.
func (s *Service) DeductPoints(ctx context.Context, userID, points int64) (int64, error) {
	if points <= 0 {
		return 0, common.ErrInvalidAmount
	}
	return s.repo.DeductPoints(ctx, userID, points)
}

// CheckBalance — советующая проверка перед списанием. НЕ резерв:
// настоящие ворота — DeductPoints.
func (s *Service) CheckBalance(ctx context.Context, userID, points int64) (bool, int64, error) {
	return s.repo.CheckBalance(ctx, userID, points)
}

// UsePromoCode применяет промокод: владельцу — реферальный бонус,
// приглашённому (если указан) — новый счёт со ссылкой на реферера.
func (s *Service) UsePromoCode(ctx context.Context, code string, newUserID *int64) (int64, error) {
	referrerID, err := s.repo.UsePromoCode(ctx, code, newUserID, s.cfg.ReferralBonus)
	if err != nil {
		return 0, err
	}

	fields := log.Fields{"promo_code": code, "referrer_id": referrerID, "bonus": s.cfg.ReferralBonus}
	if newUserID != nil {
		fields["new_user_id"] = *newUserID
	}
	log.WithFields(fields).Info("Промокод применён")
	return referrerID, nil
}

// GetUserTransactions возвращает историю, новые первыми.
func (s *Service) GetUserTransactions(ctx context.Context, userID int64, limit *int) ([]*Transaction, error) {
	return s.repo.GetUserTransactions(ctx, userID, limit)
}

func (s *Service) GetTransactionCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetTransactionCount(ctx, userID)
}

func (s *Service) GetTotalSpent(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetTotalSpent(ctx, userID)
}

func (s *Service) GetPromoCode(ctx context.Context, userID int64) (*string, error) {
	return s.repo.GetPromoCode(ctx, userID)
}

func (s *Service) GetReferrerID(ctx context.Context, userID int64) (*int64, error) {
	return s.repo.GetReferrerID(ctx, userID)
}

// GeneratePromoCode выдаёт промокод немедленно, не дожидаясь первой
// транзакции. Повторный вызов возвращает уже выданный код.
func (s *Service) GeneratePromoCode(ctx context.Context, userID int64) (string, error) {
	return s.repo.EnsurePromoCode(ctx, userID)
}

func (s *Service) UpdateBalance(ctx context.Context, userID, points int64, noTransaction bool) error {
	return s.repo.UpdateBalance(ctx, userID, points, noTransaction)
}

// ExpireDueBonuses — первая фаза сгорания: список кандидатов.
func (s *Service) ExpireDueBonuses(ctx context.Context, now time.Time) ([]*ExpirationBonus, error) {
	return s.repo.ExpireDueBonuses(ctx, now)
}

// MarkBurned — вторая фаза: подтверждение обработки бонуса.
func (s *Service) MarkBurned(ctx context.Context, bonusID int64) error {
	return s.repo.MarkBurned(ctx, bonusID)
}

func (s *Service) ComputeSpentInWindow(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	return s.repo.ComputeSpentInWindow(ctx, userID, from, to)
}

// BurnBonus сжигает несгоревший остаток одного бонуса: считает, сколько
// из начисления уже потрачено (приближение по окну дат), затем списывает
// остаток и подтверждает обработку одним атомарным блоком. Используется
// и планировщиком, и эндпоинтом шедулера бота.
func (s *Service) BurnBonus(ctx context.Context, b *ExpirationBonus) error {
	spent, err := s.repo.ComputeSpentInWindow(ctx, b.UserID, b.AddDate, b.ExpireDate)
	if err != nil {
		return err
	}

	remaining := max(b.Bonus-spent, 0)
	if err := s.repo.BurnRemainder(ctx, b, remaining); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id":  b.UserID,
		"bonus_id": b.ID,
		"granted":  b.Bonus,
		"spent":    spent,
		"burned":   remaining,
	}).Info("Сгорающий бонус обработан")
	return nil
}

// BurnExpired обрабатывает все просроченные бонусы. Ошибка по одному
// бонусу не останавливает остальные: неподтверждённые бонусы будут
// обработаны при следующем запуске. Возвращает число обработанных.
func (s *Service) BurnExpired(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ExpireDueBonuses(ctx, now)
	if err != nil {
		return 0, err
	}
	burned := 0
	for _, bonus := range due {
		if err := s.BurnBonus(ctx, bonus); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"bonus_id": bonus.ID,
				"user_id":  bonus.UserID,
			}).Error("Не удалось сжечь бонус")
			continue
		}
		burned++
	}
	return burned, nil
}

func (s *Service) RecordPreTransaction(ctx context.Context, userID, amount, bonus int64, service, comment string) (int64, error) {
	if amount < 0 {
		return 0, common.ErrInvalidAmount
	}
	return s.repo.RecordPreTransaction(ctx, userID, amount, bonus, service, comment)
}

func (s *Service) PromotePreTransaction(ctx context.Context, invoiceID int64) (int64, bool, error) {
	return s.repo.PromotePreTransaction(ctx, invoiceID)
}

func (s *Service) AllocateTransactionID(ctx context.Context) (int64, error) {
	return s.repo.AllocateTransactionID(ctx)
}

func (s *Service) LastTransactionID(ctx context.Context) (int64, error) {
	return s.repo.LastTransactionID(ctx)
}

// GetStats возвращает агрегаты для /stats.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.repo.GetStats(ctx)
}

func (s *Service) NewUsersCount(ctx context.Context, from, to *time.Time) (int64, error) {
	return s.repo.NewUsersCount(ctx, from, to)
}

func (s *Service) TransactionTotals(ctx context.Context, from, to *time.Time) (int64, int64, error) {
	return s.repo.TransactionTotals(ctx, from, to)
}

func (s *Service) BurnedBonusTotal(ctx context.Context, from, to *time.Time) (int64, error) {
	return s.repo.BurnedBonusTotal(ctx, from, to)
}
