// Package loyalty — promo.go генерирует промокоды.
package loyalty

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PromoCode возвращает детерминированный промокод для пользователя.
// user_id уникален, поэтому коллизия невозможна по построению,
// но нарушение уникальности от базы всё равно обрабатывается
// (см. ensurePromoCodeTx): повтор с солью, затем громкая ошибка.
func PromoCode(userID int64) string {
	return fmt.Sprintf("PROMO%d", userID)
}

// SaltedPromoCode возвращает вариант промокода со случайным суффиксом.
// Используется при конфликте уникальности базового кода.
func SaltedPromoCode(userID int64) string {
	salt := make([]byte, 2)
	if _, err := rand.Read(salt); err != nil {
		// crypto/rand на практике не падает; суффикс остаётся пустым,
		// и конфликт всплывёт как ErrPromoCodeConflict
		return PromoCode(userID)
	}
	return fmt.Sprintf("PROMO%dX%s", userID, hex.EncodeToString(salt))
}
