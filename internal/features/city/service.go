package city

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
	"github.com/sozdatel3/server-for-arcanBot/internal/config"
)

// Service — бизнес-логика совместимости с городом.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// Register регистрирует пользователя с начальным запасом бесплатных попыток.
func (s *Service) Register(ctx context.Context, userID int64) error {
	if err := s.repo.Register(ctx, userID, s.cfg.CityFreeTries); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"free_try": s.cfg.CityFreeTries,
	}).Info("Пользователь зарегистрирован в городах")
	return nil
}

func (s *Service) IsFirstTime(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsFirstTime(ctx, userID)
}

func (s *Service) FreeTriesLeft(ctx context.Context, userID int64) (int, error) {
	return s.repo.FreeTriesLeft(ctx, userID)
}

func (s *Service) UseFreeTry(ctx context.Context, userID int64) (bool, error) {
	return s.repo.UseFreeTry(ctx, userID)
}

// CanCheck — доступна ли пользователю проверка: безлимит покрывает всё,
// иначе смотрим остаток бесплатных попыток.
func (s *Service) CanCheck(ctx context.Context, userID int64) (bool, error) {
	unlimited, err := s.repo.HasUnlimited(ctx, userID)
	if err != nil {
		return false, err
	}
	if unlimited {
		return true, nil
	}
	left, err := s.repo.FreeTriesLeft(ctx, userID)
	if err != nil {
		return false, err
	}
	return left > 0, nil
}

func (s *Service) HasUnlimited(ctx context.Context, userID int64) (bool, error) {
	return s.repo.HasUnlimited(ctx, userID)
}

func (s *Service) SetUnlimited(ctx context.Context, userID int64) error {
	return s.repo.SetUnlimited(ctx, userID)
}

func (s *Service) AddCheckedCity(ctx context.Context, userID int64, cityName string) error {
	return s.repo.AddCheckedCity(ctx, userID, cityName)
}

func (s *Service) CheckedCities(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.CheckedCities(ctx, userID)
}

// RecordTransaction создаёт ожидающую оплаты транзакцию и возвращает её
// номер для платёжной ссылки.
func (s *Service) RecordTransaction(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	id, err := s.repo.RecordTransaction(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"amount":     amount,
		"invoice_id": id,
	}).Info("Создана транзакция совместимости")
	return id, nil
}

// ConfirmTransaction подтверждает оплату и включает пользователю безлимит.
// Повторное подтверждение ничего не меняет.
func (s *Service) ConfirmTransaction(ctx context.Context, invoiceID int64) (int64, bool, error) {
	userID, applied, err := s.repo.ConfirmTransaction(ctx, invoiceID)
	if err != nil {
		return 0, false, err
	}
	if !applied {
		return userID, false, nil
	}
	if err := s.repo.SetUnlimited(ctx, userID); err != nil {
		return userID, true, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"invoice_id": invoiceID,
	}).Info("Оплата совместимости подтверждена")
	return userID, true, nil
}

func (s *Service) LastTransaction(ctx context.Context) (*Transaction, error) {
	return s.repo.LastTransaction(ctx)
}

func (s *Service) UserTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	return s.repo.UserTransactions(ctx, userID)
}

func (s *Service) ConfirmedTotals(ctx context.Context, from, to *time.Time) (int64, int64, error) {
	return s.repo.ConfirmedTotals(ctx, from, to)
}

func (s *Service) ConfirmedAmounts(ctx context.Context, from, to *time.Time) ([]int64, error) {
	return s.repo.ConfirmedAmounts(ctx, from, to)
}

// FreeTriesConsumed — сколько бесплатных попыток потрачено всего.
func (s *Service) FreeTriesConsumed(ctx context.Context) (int64, error) {
	return s.repo.FreeTriesConsumed(ctx, s.cfg.CityFreeTries)
}
