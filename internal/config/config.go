package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shenikar/truck_dispatch_system/internal/models"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// defaultFleet автопарк по умолчанию: две машины в центре Лос-Анджелеса
const defaultFleet = "ABC123:34.052235:-118.243683,XYZ789:34.052235:-118.243683"

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL    string        `env:"DATABASE_URL"`
	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"postgres"`
	MigrationsPath string        `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3s"`

	// Redis Config
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	ReportCacheTTL time.Duration `env:"REPORT_CACHE_TTL" envDefault:"5m"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Fleet & Dispatch Config
	Fleet             []models.Truck `env:"FLEET"`
	QueueCapacity     int            `env:"QUEUE_CAPACITY" envDefault:"100"`
	SchedulerInterval time.Duration  `env:"SCHEDULER_INTERVAL" envDefault:"1s"`
	HoldWindow        time.Duration  `env:"HOLD_WINDOW" envDefault:"0s"`
	RetryBaseDelay    time.Duration  `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay     time.Duration  `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	PersistMaxRetries int            `env:"PERSIST_MAX_RETRIES" envDefault:"5"`
	PersistBaseDelay  time.Duration  `env:"PERSIST_BASE_DELAY" envDefault:"200ms"`
	TruckSpeedKmh     float64        `env:"TRUCK_SPEED_KMH" envDefault:"45"`
	ETABuffer         time.Duration  `env:"ETA_BUFFER" envDefault:"5m"`

	// Shared secret for the administrative reset
	AdminSecret string `env:"ADMIN_SECRET"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoreDriver:       getEnv("STORE_DRIVER", StoreDriverPostgres),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 3*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		ReportCacheTTL:    getEnvAsDuration("REPORT_CACHE_TTL", 5*time.Minute),
		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:    getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries: getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:  getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		QueueCapacity:     getEnvAsInt("QUEUE_CAPACITY", 100),
		SchedulerInterval: getEnvAsDuration("SCHEDULER_INTERVAL", time.Second),
		HoldWindow:        getEnvAsDuration("HOLD_WINDOW", 0),
		RetryBaseDelay:    getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:     getEnvAsDuration("RETRY_MAX_DELAY", 30*time.Second),
		PersistMaxRetries: getEnvAsInt("PERSIST_MAX_RETRIES", 5),
		PersistBaseDelay:  getEnvAsDuration("PERSIST_BASE_DELAY", 200*time.Millisecond),
		TruckSpeedKmh:     getEnvAsFloat("TRUCK_SPEED_KMH", 45),
		ETABuffer:         getEnvAsDuration("ETA_BUFFER", 5*time.Minute),
		AdminSecret:       os.Getenv("ADMIN_SECRET"),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	fleet, err := ParseFleet(getEnv("FLEET", defaultFleet))
	if err != nil {
		return nil, err
	}
	cfg.Fleet = fleet

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ADMIN_SECRET environment variable is required")
	}

	return cfg, nil
}

// ParseFleet разбирает список машин в формате "ID:lat:lon,ID:lat:lon"
func ParseFleet(raw string) ([]models.Truck, error) {
	var trucks []models.Truck
	seen := make(map[string]bool)

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid fleet entry %q: expected ID:lat:lon", item)
		}
		id := strings.TrimSpace(parts[0])
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if id == "" || errLat != nil || errLon != nil {
			return nil, fmt.Errorf("invalid fleet entry %q", item)
		}
		loc := models.Location{Latitude: lat, Longitude: lon}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid fleet entry %q: %w", item, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate truck id %q in fleet", id)
		}
		seen[id] = true
		trucks = append(trucks, models.Truck{ID: id, Location: loc, Available: true})
	}

	if len(trucks) == 0 {
		return nil, fmt.Errorf("fleet must contain at least one truck")
	}
	return trucks, nil
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

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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
