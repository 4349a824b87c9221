// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервера.
// Эти ошибки позволяют обработчикам различать типы проблем
// и возвращать боту правильный HTTP-статус.
package common

import "errors"

// Ошибки программы лояльности
var (
	// ErrAccountExists — пользователь уже участвует в программе лояльности
	ErrAccountExists = errors.New("пользователь уже участвует в программе лояльности")
	// ErrInsufficientBalance — недостаточно баллов на счёте
	ErrInsufficientBalance = errors.New("недостаточно баллов на счёте")
	// ErrInvalidPromoCode — промокод не принадлежит ни одному счёту
	ErrInvalidPromoCode = errors.New("промокод не найден")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInvalidExpiration — некорректный срок сгорания бонуса
	ErrInvalidExpiration = errors.New("срок сгорания должен быть положительным числом дней")
	// ErrPromoCodeConflict — сгенерированный промокод уже занят (даже после повтора с солью)
	ErrPromoCodeConflict = errors.New("не удалось сгенерировать уникальный промокод")
)

// Ошибки платежей
var (
	// ErrBadSignature — подпись платёжного уведомления не сошлась
	ErrBadSignature = errors.New("неверная подпись платежа")
	// ErrTransactionNotFound — транзакция с таким номером счёта не найдена
	ErrTransactionNotFound = errors.New("транзакция не найдена")
)

// Ошибки фичи «совместимость с городом»
var (
	// ErrAlreadyInCity — пользователь уже зарегистрирован в фиче городов
	ErrAlreadyInCity = errors.New("пользователь уже зарегистрирован в таблице городов")
)

// Ошибки инфраструктуры
var (
	// ErrStoreUnavailable — база данных недоступна (таймаут, обрыв соединения).
	// Операцию безопасно повторить целиком: частичных состояний не остаётся.
	ErrStoreUnavailable = errors.New("база данных недоступна")
	// ErrNotAdmin — неверный пароль администратора
	ErrNotAdmin = errors.New("неверный пароль администратора")
)
