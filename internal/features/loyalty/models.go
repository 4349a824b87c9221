// Package loyalty управляет программой лояльности: баллы, транзакции,
// промокоды и сгорающие бонусы.
// models.go описывает структуры для счетов и движений баллов.
package loyalty

import "time"

// Account представляет счёт пользователя в программе лояльности.
// Каждый участник имеет ровно одну запись в таблице loyalty.
// Поля balance/total_spent/count_of_transaction меняются ТОЛЬКО
// операциями этого пакета — никакой другой модуль их не пишет.
type Account struct {
	ID                  int64      `db:"id" json:"id"`
	UserID              int64      `db:"user_id" json:"user_id"`
	Balance             int64      `db:"balance" json:"balance"`                             // Текущий баланс баллов
	TotalSpent          int64      `db:"total_spent" json:"total_spent"`                     // Сумма покупок за всё время
	CountOfTransaction  int64      `db:"count_of_transaction" json:"count_of_transaction"`   // Счётчик транзакций
	LastTransactionDate *time.Time `db:"last_transaction_date" json:"last_transaction_date"` // Последнее движение по счёту
	PromoCode           *string    `db:"promo_code" json:"promo_code"`                       // Уникальный промокод (выдаётся лениво)
	ReferrerID          *int64     `db:"referrer_id" json:"referrer_id"`                     // Кто привёл (ставится один раз)
}

// Transaction представляет одно движение баллов. Записи только
// добавляются: транзакции никогда не редактируются и не удаляются.
type Transaction struct {
	ID      int64     `db:"id" json:"id"`           // ID из единого пространства номеров счетов
	UserID  int64     `db:"user_id" json:"user_id"` // Чей счёт
	Amount  int64     `db:"amount" json:"amount"`   // Внешняя сумма покупки (0 для чистых бонусов)
	Bonus   int64     `db:"bonus" json:"bonus"`     // Дельта баллов со знаком (+начисление, -списание)
	Service string    `db:"service" json:"service"` // Категория услуги
	Comment string    `db:"comment" json:"comment"`
	Date    time.Time `db:"date" json:"date"`
}

// ExpirationBonus — начисленный бонус, который сгорает.
// Жизненный цикл: Pending → Burned, в одну сторону.
type ExpirationBonus struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Bonus      int64     `db:"bonus" json:"bonus"`             // Сколько баллов было начислено
	AddDate    time.Time `db:"add_date" json:"add_date"`       // Когда начислили
	ExpireDate time.Time `db:"expire_date" json:"expire_date"` // Когда сгорает (строго позже add_date)
	Burned     bool      `db:"flag_is_burned" json:"flag_is_burned"`
}

// Stats — агрегаты по всей программе лояльности.
type Stats struct {
	UsersCount   int64 `json:"users_count"`
	TotalBalance int64 `json:"total_balance"`
	TotalSpent   int64 `json:"total_spent"`
}

// Категории транзакций, которые создаёт сам сервер.
// Остальные категории приходят от бота как есть.
const (
	ServiceReferral     = "referral"      // Реферальный бонус владельцу промокода
	ServiceBonusBurn    = "bonus_burn"    // Списание сгоревшего бонуса
	ServiceCityPayment  = "city_payment"  // Оплата совместимости с городом
	ServiceCoverPayment = "cover_payment" // Покупка попыток обложки
)
