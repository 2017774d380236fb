package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram TelegramConfig
	Server   ServerConfig
	Exchange ExchangeConfig
	Storage  StorageConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// TelegramConfig - настройки подключения к Telegram Bot API
type TelegramConfig struct {
	Token       string
	PollTimeout time.Duration // long polling getUpdates
	Debug       bool
	SendRetries int // повторы при 429 Too Many Requests
}

// ServerConfig - настройки вспомогательного HTTP сервера (health, metrics, events)
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	AllowedOrigins  []string // CORS и Origin для /ws/events, пусто = без ограничений для WebSocket
}

// ExchangeConfig - настройки REST клиента dYdX
type ExchangeConfig struct {
	Host      string
	Timeout   time.Duration
	RateLimit float64 // запросов в секунду
	RateBurst float64
}

// StorageConfig - где хранятся accounts.json, schedules.json и выгрузки
type StorageConfig struct {
	Driver      string
	DataDir     string
	ExportDir   string
	DatabaseURL string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string // пусто = учетные данные хранятся открыто
	AdminToken    string // открытое значение или bcrypt хеш, пусто = /metrics и /ws закрыты
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level       string
	Format      string
	Output      string
	Development bool
}

// Load загружает конфигурацию из переменных окружения.
// Если рядом есть .env, он читается первым и не перетирает уже заданные переменные.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

// LoadFile загружает конфигурацию с указанным .env файлом
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token:       getEnv("TELEGRAM_BOT_TOKEN", ""),
			PollTimeout: getEnvAsDuration("TELEGRAM_POLL_TIMEOUT", 60*time.Second),
			Debug:       getEnvAsBool("TELEGRAM_DEBUG", false),
			SendRetries: getEnvAsInt("TELEGRAM_SEND_RETRIES", 3),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getEnvAsInt("SERVER_PORT", 4004),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),
		},
		Exchange: ExchangeConfig{
			Host:      strings.TrimRight(getEnv("EXCHANGE_HOST", "https://api.dydx.exchange"), "/"),
			Timeout:   getEnvAsDuration("EXCHANGE_TIMEOUT", 30*time.Second),
			RateLimit: getEnvAsFloat("EXCHANGE_RATE_LIMIT", 5),
			RateBurst: getEnvAsFloat("EXCHANGE_RATE_BURST", 10),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
			DataDir:     getEnv("DATA_DIR", "."),
			ExportDir:   getEnv("EXPORT_DIR", "data"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
			AdminToken:    getEnv("ADMIN_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Output:      getEnv("LOG_OUTPUT", ""),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.validateRequired(); err != nil {
		return nil, err
	}
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired проверяет обязательные параметры
func (c *Config) validateRequired() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if _, err := url.ParseRequestURI(c.Exchange.Host); err != nil {
		return fmt.Errorf("EXCHANGE_HOST must be an absolute URL, got %q", c.Exchange.Host)
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Telegram.PollTimeout < time.Second {
		return fmt.Errorf("TELEGRAM_POLL_TIMEOUT must be at least 1s, got %v", c.Telegram.PollTimeout)
	}
	if c.Telegram.SendRetries < 1 || c.Telegram.SendRetries > 10 {
		return fmt.Errorf("TELEGRAM_SEND_RETRIES must be between 1 and 10, got %d", c.Telegram.SendRetries)
	}
	if c.Exchange.Timeout <= 0 {
		return fmt.Errorf("EXCHANGE_TIMEOUT must be positive, got %v", c.Exchange.Timeout)
	}
	if c.Exchange.RateLimit <= 0 {
		return fmt.Errorf("EXCHANGE_RATE_LIMIT must be positive, got %v", c.Exchange.RateLimit)
	}
	if c.Exchange.RateBurst < 0 {
		return fmt.Errorf("EXCHANGE_RATE_BURST cannot be negative, got %v", c.Exchange.RateBurst)
	}
	return nil
}

// validateStorage проверяет выбранный драйвер хранилища
func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("DATA_DIR cannot be empty for file storage")
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageFile, StoragePostgres, c.Storage.Driver)
	}
	if c.Storage.ExportDir == "" {
		return fmt.Errorf("EXPORT_DIR cannot be empty")
	}
	return nil
}

// Addr возвращает адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSNWithoutPassword возвращает DATABASE_URL без пароля (для логирования)
func (s StorageConfig) DSNWithoutPassword() string {
	u, err := url.Parse(s.DatabaseURL)
	if err != nil || u.User == nil {
		return s.DatabaseURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
