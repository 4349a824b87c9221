// Package city управляет фичей «совместимость с городом»:
// бесплатные попытки, безлимит после оплаты и платёжные транзакции.
// models.go описывает структуры таблиц city и city_transactions.
package city

import "time"

// User — запись пользователя в фиче городов.
type User struct {
	ID                  int64      `db:"id" json:"id"`
	UserID              int64      `db:"user_id" json:"user_id"`
	FreeTriesLeft       int        `db:"have_free_try" json:"have_free_try"` // Остаток бесплатных попыток (не уходит ниже нуля)
	HasUnlimited        bool       `db:"have_pay" json:"have_pay"`           // Оплачен безлимит
	CitiesChecked       *string    `db:"cities_checked" json:"cities_checked"`
	LastTransactionDate *time.Time `db:"last_transaction_date" json:"last_transaction_date"`
}

// Transaction — платёжная транзакция совместимости. Номер берётся из
// единого пространства transaction_id_seq: он не может совпасть ни с
// одной транзакцией лояльности или пре-транзакцией.
type Transaction struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	Amount     int64      `db:"amount" json:"amount"`
	CreateDate time.Time  `db:"create_date" json:"create_date"`
	PayDate    *time.Time `db:"pay_date" json:"pay_date"` // NULL до подтверждения оплаты
	Status     string     `db:"status" json:"status"`
}

// Статусы платёжной транзакции: pending → confirmed, в одну сторону.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)
