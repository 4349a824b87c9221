package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/db/postgres"
)

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, db postgres.DB) error {
	// Инициализируем систему миграций
	if err := postgres.InitMigrations(ctx, db); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Loyalty},
		{2, migration002City},
		{3, migration003SeedSequence},
		{4, migration004Cover},
		{5, migration005Forecasts},
		{6, migration006Broadcasts},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, db, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

// Единая последовательность transaction_id_seq выдаёт номера всем трём
// таблицам платежей: номер счёта однозначно определяет транзакцию.
var migration001Loyalty = `
CREATE SEQUENCE IF NOT EXISTS transaction_id_seq START WITH 1000;

CREATE TABLE IF NOT EXISTS loyalty (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    balance BIGINT DEFAULT 0,
    total_spent BIGINT DEFAULT 0,
    count_of_transaction BIGINT DEFAULT 0,
    last_transaction_date TIMESTAMP,
    promo_code VARCHAR(64) UNIQUE,
    referrer_id BIGINT,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_loyalty_user_id ON loyalty(user_id);
CREATE INDEX IF NOT EXISTS idx_loyalty_promo_code ON loyalty(promo_code);

CREATE TABLE IF NOT EXISTS transactions (
    id BIGINT PRIMARY KEY DEFAULT nextval('transaction_id_seq'),
    user_id BIGINT NOT NULL,
    amount BIGINT NOT NULL,
    bonus BIGINT NOT NULL,
    service VARCHAR(64) NOT NULL,
    comment TEXT,
    date TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date DESC);

CREATE TABLE IF NOT EXISTS pre_transactions (
    id BIGINT PRIMARY KEY DEFAULT nextval('transaction_id_seq'),
    user_id BIGINT NOT NULL,
    amount BIGINT NOT NULL,
    bonus BIGINT NOT NULL,
    service VARCHAR(64) NOT NULL,
    comment TEXT,
    date TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_pre_transactions_user_id ON pre_transactions(user_id);

CREATE TABLE IF NOT EXISTS expiration_bonus_movement (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    bonus BIGINT NOT NULL,
    add_date TIMESTAMP NOT NULL DEFAULT NOW(),
    expire_date TIMESTAMP NOT NULL,
    flag_is_burned BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_expiration_expire_date ON expiration_bonus_movement(expire_date) WHERE flag_is_burned = FALSE;
`

var migration002City = `
CREATE TABLE IF NOT EXISTS city (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    have_free_try INTEGER DEFAULT 2,
    have_pay BOOLEAN DEFAULT FALSE,
    cities_checked TEXT,
    last_transaction_date TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_city_user_id ON city(user_id);

CREATE TABLE IF NOT EXISTS city_transactions (
    id BIGINT PRIMARY KEY DEFAULT nextval('transaction_id_seq'),
    user_id BIGINT NOT NULL,
    amount BIGINT NOT NULL,
    create_date TIMESTAMP DEFAULT NOW(),
    pay_date TIMESTAMP,
    status VARCHAR(16) DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_city_transactions_user_id ON city_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_city_transactions_status ON city_transactions(status);
`

// Продолжаем нумерацию со старых данных, но не ниже 1000.
var migration003SeedSequence = `
SELECT setval('transaction_id_seq', GREATEST(
    COALESCE((SELECT MAX(id) FROM transactions), 0),
    COALESCE((SELECT MAX(id) FROM pre_transactions), 0),
    COALESCE((SELECT MAX(id) FROM city_transactions), 0),
    1000
));
`

var migration004Cover = `
CREATE TABLE IF NOT EXISTS cover_users (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    arcan INTEGER DEFAULT 0,
    like_last BOOLEAN,
    has_paid BOOLEAN DEFAULT FALSE,
    attempts_left INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cover_users_user_id ON cover_users(user_id);
`

var migration005Forecasts = `
CREATE TABLE IF NOT EXISTS monthly_forecasts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    arcan INTEGER DEFAULT 0,
    subscription BOOLEAN DEFAULT FALSE,
    time_to_send_useful TIMESTAMP,
    useful_sent BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_monthly_forecasts_user_id ON monthly_forecasts(user_id);

CREATE TABLE IF NOT EXISTS arcan_descriptions (
    id BIGSERIAL PRIMARY KEY,
    arcan INTEGER NOT NULL,
    month VARCHAR(7) NOT NULL,
    description TEXT NOT NULL,
    UNIQUE (arcan, month)
);
`

var migration006Broadcasts = `
CREATE TABLE IF NOT EXISTS broadcasts (
    id BIGSERIAL PRIMARY KEY,
    broadcast_name VARCHAR(255) NOT NULL,
    user_id BIGINT NOT NULL,
    delivered BOOLEAN DEFAULT FALSE,
    UNIQUE (broadcast_name, user_id)
);
CREATE INDEX IF NOT EXISTS idx_broadcasts_name ON broadcasts(broadcast_name) WHERE delivered = FALSE;
`
