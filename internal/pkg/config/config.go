// Package config reads the storefront settings from the environment. A .env
// file in the working directory is loaded first when present.
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

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"

	TransportWebSocket = "websocket"
	TransportKafka     = "kafka"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	CartStorage string
	CartTTL     time.Duration
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string

	CacheBackend string

	EventsTransport string
	EventsURL       string
	KafkaBrokers    []string
	KafkaTopic      string

	AuthToken  string
	CustomerID string

	NotificationPermission string
	NotificationsEnabled   bool

	ServiceName     string
	TracingEnabled  bool
	TraceSampleRate float64
	ShutdownGrace   time.Duration
}

// Load reads the environment. Missing optional settings fall back to
// defaults suitable for local development.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Config{
		Env:      getEnv("APP_ENV", "local"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		CartStorage: strings.ToLower(getEnv("CART_STORAGE", StorageMemory)),
		CartTTL:     getEnvDuration("CART_TTL", 7*24*time.Hour),
		SQLitePath:  getEnv("SQLITE_PATH", "orderium.db"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", StorageMemory)),

		EventsTransport: strings.ToLower(getEnv("EVENTS_TRANSPORT", TransportWebSocket)),
		EventsURL:       getEnv("EVENTS_URL", "ws://localhost:3001/ws/orders"),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "order-events"),

		AuthToken:  getEnv("AUTH_TOKEN", ""),
		CustomerID: getEnv("CUSTOMER_ID", ""),

		NotificationPermission: getEnv("NOTIFICATION_PERMISSION", "default"),
		NotificationsEnabled:   getEnvBool("NOTIFICATIONS_ENABLED", false),

		ServiceName:     getEnv("OTEL_SERVICE_NAME", "storefront"),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		TraceSampleRate: getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		ShutdownGrace:   getEnvDuration("SHUTDOWN_GRACE", 5*time.Second),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.CartStorage {
	case StorageMemory, StorageSQLite, StorageRedis:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN is required when CART_STORAGE=postgres")
		}
	default:
		return fmt.Errorf("config: unknown CART_STORAGE %q", c.CartStorage)
	}
	switch c.CacheBackend {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	switch c.EventsTransport {
	case TransportWebSocket:
	case TransportKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("config: KAFKA_BROKERS is required when EVENTS_TRANSPORT=kafka")
		}
	default:
		return fmt.Errorf("config: unknown EVENTS_TRANSPORT %q", c.EventsTransport)
	}
	if c.NotificationsEnabled && (c.AuthToken == "" || c.CustomerID == "") {
		return errors.New("config: AUTH_TOKEN and CUSTOMER_ID are required when NOTIFICATIONS_ENABLED")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
