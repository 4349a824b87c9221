// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с московским временем и форматирование дат,
// в котором бот ожидает получать временные метки.
package common

import "time"

// Формат дат, принятый в обмене с ботом (и в старых данных).
const DateTimeLayout = "2006-01-02 15:04:05"

// MoscowLocation возвращает часовой пояс Europe/Moscow.
// Если база tzdata недоступна — фиксированный UTC+3.
func MoscowLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// MoscowTime возвращает текущее время в часовом поясе Москвы.
// Используется планировщиком сгорания бонусов и напоминаний.
func MoscowTime() time.Time {
	return time.Now().In(MoscowLocation())
}

// CurrentMonth возвращает месяц в формате "2006-01" (ключ описаний арканов).
func CurrentMonth() string {
	return MoscowTime().Format("2006-01")
}

// FormatDateTime форматирует время в формат "2006-01-02 15:04:05".
func FormatDateTime(t time.Time) string {
	return t.In(MoscowLocation()).Format(DateTimeLayout)
}

// ParseDateTime разбирает время из формата "2006-01-02 15:04:05".
func ParseDateTime(s string) (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, s, MoscowLocation())
}
