package payments

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

// CityConfirmer подтверждает оплату транзакции совместимости.
type CityConfirmer interface {
	ConfirmTransaction(ctx context.Context, invoiceID int64) (int64, bool, error)
}

// LoyaltyPromoter превращает пре-транзакцию в зачисленную транзакцию
// лояльности под тем же номером.
type LoyaltyPromoter interface {
	PromotePreTransaction(ctx context.Context, invoiceID int64) (int64, bool, error)
}

// Service обрабатывает уведомления Robokassa об успешной оплате.
// Номера счетов живут в едином пространстве, поэтому по одному номеру
// однозначно понятно, к какой из двух платёжных веток он относится.
type Service struct {
	signer  *Signer
	city    CityConfirmer
	loyalty LoyaltyPromoter
}

func NewService(signer *Signer, city CityConfirmer, loyalty LoyaltyPromoter) *Service {
	return &Service{signer: signer, city: city, loyalty: loyalty}
}

func (s *Service) Signer() *Signer {
	return s.signer
}

// HandleResult проверяет подпись уведомления и применяет оплату.
// Сначала счёт ищется среди транзакций совместимости, затем среди
// пре-транзакций лояльности. Повторное уведомление о том же счёте
// ничего не меняет и тоже считается успехом.
func (s *Service) HandleResult(ctx context.Context, amount, invoiceIDRaw, userIDRaw, signature string, invoiceID int64) error {
	if !s.signer.VerifyResult(amount, invoiceIDRaw, userIDRaw, signature) {
		logrus.WithFields(logrus.Fields{
			"invoice_id": invoiceIDRaw,
			"user_id":    userIDRaw,
		}).Warn("Неверная подпись уведомления об оплате")
		return common.ErrBadSignature
	}

	userID, applied, err := s.city.ConfirmTransaction(ctx, invoiceID)
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"invoice_id": invoiceID,
			"user_id":    userID,
			"applied":    applied,
		}).Info("Оплата совместимости обработана")
		return nil
	}
	if !errors.Is(err, common.ErrTransactionNotFound) {
		return err
	}

	userID, applied, err = s.loyalty.PromotePreTransaction(ctx, invoiceID)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"invoice_id": invoiceID,
		"user_id":    userID,
		"applied":    applied,
	}).Info("Оплата по программе лояльности обработана")
	return nil
}
