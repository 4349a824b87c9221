// Package config загружает конфигурацию сервера из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8000"`
	// Таймаут на обработку одного запроса. По его истечении операция
	// завершается ошибкой «база недоступна», бот может повторить запрос.
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"arcanbot"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"arcanbot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	// Debug переключает сервер в тестовый режим: подписи платежей
	// проверяются тестовыми паролями Робокассы, а не боевыми.
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Robokassa ---
	// Две пары паролей: боевая и тестовая. Какая пара активна,
	// решается один раз флагом DEBUG, не на каждый запрос.
	RobokassaLogin         string `envconfig:"ROBOKASSA_LOGIN" required:"true"`
	RobokassaPassword1     string `envconfig:"ROBOKASSA_PASSWORD1" required:"true"`
	RobokassaPassword2     string `envconfig:"ROBOKASSA_PASSWORD2" required:"true"`
	RobokassaTestPassword1 string `envconfig:"ROBOKASSA_TEST_PASSWORD1" required:"true"`
	RobokassaTestPassword2 string `envconfig:"ROBOKASSA_TEST_PASSWORD2" required:"true"`

	// --- Loyalty ---
	// Размер реферального бонуса владельцу промокода.
	ReferralBonus int64 `envconfig:"LOYALTY_REFERRAL_BONUS" default:"500"`

	// --- City ---
	// Сколько бесплатных попыток совместимости выдаётся при регистрации.
	CityFreeTries int `envconfig:"CITY_FREE_TRIES" default:"2"`
	// Стоимость одной проверки совместимости (для вычисления чаевых в статистике).
	CityBasePrice int64 `envconfig:"CITY_BASE_PRICE" default:"270"`

	// --- Cover ---
	// Сколько попыток заставок добавляет оплата.
	CoverPaidAttempts int `envconfig:"COVER_PAID_ATTEMPTS" default:"10"`

	// --- Admin ---
	// Argon2id-хеш пароля для эндпоинтов статистики и рассылок.
	// Сгенерировать: go run scripts/generate_hash.go <пароль>
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// ActivePassword1 возвращает пароль №1 Робокассы для активного режима.
// Пароль №1 участвует в подписи исходящих ссылок на оплату.
func (c *Config) ActivePassword1() string {
	if c.Debug {
		return c.RobokassaTestPassword1
	}
	return c.RobokassaPassword1
}

// ActivePassword2 возвращает пароль №2 Робокассы для активного режима.
// Пароль №2 участвует в проверке подписи входящих уведомлений об оплате.
func (c *Config) ActivePassword2() string {
	if c.Debug {
		return c.RobokassaTestPassword2
	}
	return c.RobokassaPassword2
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT должен быть > 0")
	}
	if c.ReferralBonus < 0 {
		return fmt.Errorf("LOYALTY_REFERRAL_BONUS не может быть отрицательным")
	}
	if c.CityFreeTries < 0 {
		return fmt.Errorf("CITY_FREE_TRIES не может быть отрицательным")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
