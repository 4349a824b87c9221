package cover

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/config"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/forecast"
	"github.com/sozdatel3/server-for-arcanBot/internal/features/loyalty"
)

// Describer отдаёт описание аркана на месяц. Реализуется сервисом
// прогнозов, у которого живёт таблица описаний.
type Describer interface {
	Description(ctx context.Context, arcan int, month string) (*forecast.Description, error)
}

// PurchaseRecorder проводит покупку через движок лояльности.
// Реализуется сервисом лояльности.
type PurchaseRecorder interface {
	RecordTransaction(ctx context.Context, userID, amount, bonus int64, service, comment string, expirationDays *int) (int64, error)
}

type Service struct {
	repo      *Repository
	describer Describer
	ledger    PurchaseRecorder
	cfg       *config.Config
}

func NewService(repo *Repository, describer Describer, ledger PurchaseRecorder, cfg *config.Config) *Service {
	return &Service{repo: repo, describer: describer, ledger: ledger, cfg: cfg}
}

// InitUser заводит пользователя с его арканом.
func (s *Service) InitUser(ctx context.Context, userID int64, arcan int) error {
	return s.repo.InitUser(ctx, userID, arcan)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetUser(ctx, userID)
}

// SetLikeLast запоминает реакцию на последнюю обложку.
func (s *Service) SetLikeLast(ctx context.Context, userID int64, liked bool) error {
	return s.repo.SetLikeLast(ctx, userID, liked)
}

// MarkPaid отмечает оплату и зачисляет стандартный пакет попыток.
func (s *Service) MarkPaid(ctx context.Context, userID int64) error {
	if err := s.repo.MarkPaid(ctx, userID, s.cfg.CoverPaidAttempts); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"attempts": s.cfg.CoverPaidAttempts,
	}).Info("Оплата обложек, зачислен пакет попыток")
	return nil
}

// PurchaseAttempts проводит покупку пакета попыток: транзакция в движке
// лояльности, отметка оплаты и зачисление попыток.
func (s *Service) PurchaseAttempts(ctx context.Context, userID, amount int64) (int64, error) {
	txID, err := s.ledger.RecordTransaction(ctx, userID, amount, 0, loyalty.ServiceCoverPayment, "покупка попыток обложки", nil)
	if err != nil {
		return 0, err
	}
	if err := s.repo.MarkPaid(ctx, userID, s.cfg.CoverPaidAttempts); err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"amount":         amount,
		"transaction_id": txID,
		"attempts":       s.cfg.CoverPaidAttempts,
	}).Info("Покупка попыток обложки проведена")
	return txID, nil
}

// GrantPaidAttempts зачисляет стандартный пакет попыток без отметки
// об оплате (ручное начисление администратором).
func (s *Service) GrantPaidAttempts(ctx context.Context, userID int64) error {
	if err := s.repo.AddAttempts(ctx, userID, s.cfg.CoverPaidAttempts); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"attempts": s.cfg.CoverPaidAttempts,
	}).Info("Зачислен пакет попыток обложки")
	return nil
}

func (s *Service) Attempts(ctx context.Context, userID int64) (int, error) {
	return s.repo.Attempts(ctx, userID)
}

func (s *Service) UseAttempt(ctx context.Context, userID int64) (bool, error) {
	return s.repo.UseAttempt(ctx, userID)
}

// ArcanDescription возвращает описание аркана пользователя на месяц.
// Пустой month означает текущий месяц.
func (s *Service) ArcanDescription(ctx context.Context, userID int64, month string) (*forecast.Description, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return s.describer.Description(ctx, u.Arcan, month)
}
