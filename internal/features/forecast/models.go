// Package forecast обслуживает ежемесячные прогнозы: подписки
// пользователей, напоминания о полезном сообщении и тексты описаний
// арканов по месяцам.
package forecast

import "time"

// Subscriber — запись подписчика на ежемесячный прогноз.
type Subscriber struct {
	ID               int64      `db:"id" json:"id"`
	UserID           int64      `db:"user_id" json:"user_id"`
	Arcan            int        `db:"arcan" json:"arcan"`
	Subscription     bool       `db:"subscription" json:"subscription"`
	TimeToSendUseful *time.Time `db:"time_to_send_useful" json:"time_to_send_useful"`
	UsefulSent       bool       `db:"useful_sent" json:"useful_sent"`
}

// Description — текст описания аркана на конкретный месяц.
// Месяц хранится строкой вида "2026-08", пара (аркан, месяц) уникальна.
type Description struct {
	Arcan       int    `db:"arcan" json:"arcan"`
	Month       string `db:"month" json:"month"`
	Description string `db:"description" json:"description"`
}
