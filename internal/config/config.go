package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxConns     int    `env:"DB_MAX_CONNS" envDefault:"10"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Local cache
	CachePath string `env:"CACHE_PATH" envDefault:"incidents.cache.db"`

	// Live feed
	FeedChannel        string        `env:"FEED_CHANNEL" envDefault:"incidents:changes"`
	FeedResyncInterval time.Duration `env:"FEED_RESYNC_INTERVAL" envDefault:"30s"`
	FeedRetryBase      time.Duration `env:"FEED_RETRY_BASE" envDefault:"500ms"`
	FeedRetryMax       time.Duration `env:"FEED_RETRY_MAX" envDefault:"30s"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Object storage
	StorageURL     string        `env:"STORAGE_URL"`
	StorageToken   string        `env:"STORAGE_TOKEN"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"30s"`

	// AI classification
	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierModel   string        `env:"CLASSIFIER_MODEL" envDefault:"llama3"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"20s"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла.
// Пустой envFile означает .env в текущем каталоге.
func LoadConfig(envFile string) (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	var err error
	if envFile == "" {
		err = godotenv.Load()
	} else {
		err = godotenv.Load(envFile)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getEnvAsInt("DB_MAX_CONNS", 10),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		CachePath:          getEnv("CACHE_PATH", "incidents.cache.db"),
		FeedChannel:        getEnv("FEED_CHANNEL", "incidents:changes"),
		FeedResyncInterval: getEnvAsDuration("FEED_RESYNC_INTERVAL", 30*time.Second),
		FeedRetryBase:      getEnvAsDuration("FEED_RETRY_BASE", 500*time.Millisecond),
		FeedRetryMax:       getEnvAsDuration("FEED_RETRY_MAX", 30*time.Second),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:     getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:  getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:   getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		StorageURL:         os.Getenv("STORAGE_URL"),
		StorageToken:       os.Getenv("STORAGE_TOKEN"),
		StorageTimeout:     getEnvAsDuration("STORAGE_TIMEOUT", 30*time.Second),
		ClassifierURL:      os.Getenv("CLASSIFIER_URL"),
		ClassifierModel:    getEnv("CLASSIFIER_MODEL", "llama3"),
		ClassifierTimeout:  getEnvAsDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.WebhookMaxRetries < 1 {
		cfg.WebhookMaxRetries = 1
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
