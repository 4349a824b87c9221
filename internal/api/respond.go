// Package api содержит общий код HTTP-слоя: ответы в JSON,
// разбор тел запросов с валидацией и маппинг ошибок на статусы.
// Обработчики фич остаются тонкими: decode → service → encode.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

var validate = validator.New()

// JSON пишет ответ со статусом и телом в JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Ошибка сериализации ответа")
	}
}

// Message — ответ вида {"message": "..."} (формат, который ждёт бот).
func Message(w http.ResponseWriter, status int, text string) {
	JSON(w, status, map[string]string{"message": text})
}

// Detail — ошибка вида {"detail": "..."} с заданным статусом.
func Detail(w http.ResponseWriter, status int, text string) {
	JSON(w, status, map[string]string{"detail": text})
}

// Decode разбирает JSON-тело запроса и прогоняет его через validator.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("некорректное тело запроса: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("валидация запроса: %w", err)
	}
	return nil
}

// ServiceError превращает ошибку бизнес-слоя в HTTP-ответ.
// Штатные исходы (нет баллов, неверный промокод) — дешёвые 4xx,
// они не должны засорять мониторинг ошибок так, как недоступная база.
func ServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrAccountExists):
		Detail(w, http.StatusConflict, "User already exists in loyalty system")
	case errors.Is(err, common.ErrAlreadyInCity):
		Detail(w, http.StatusBadRequest, "User already in city table")
	case errors.Is(err, common.ErrInsufficientBalance):
		Detail(w, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, common.ErrInvalidPromoCode):
		Detail(w, http.StatusNotFound, "Invalid promo code")
	case errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrInvalidExpiration):
		Detail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrBadSignature):
		Detail(w, http.StatusForbidden, "bad sign")
	case errors.Is(err, common.ErrTransactionNotFound):
		Detail(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, common.ErrNotAdmin):
		Detail(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, common.ErrStoreUnavailable):
		log.WithError(err).Error("База данных недоступна")
		Detail(w, http.StatusServiceUnavailable, "Storage unavailable, retry later")
	default:
		// Неожиданная ошибка хранилища: логируем с контекстом,
		// боту отдаём 503 — операцию безопасно повторить
		log.WithError(err).Error("Ошибка операции")
		Detail(w, http.StatusServiceUnavailable, "Storage unavailable, retry later")
	}
}

// BadRequest — ошибка разбора/валидации запроса.
func BadRequest(w http.ResponseWriter, msg string) {
	Detail(w, http.StatusBadRequest, msg)
}
