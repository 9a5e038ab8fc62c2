// Package config loads the gateway configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory = "memory"
	StorageBolt   = "bolt"
	StorageRedis  = "redis"
)

type Config struct {
	HTTPPort           string
	GRPCPort           string
	APIBaseURL         string
	RequestTimeout     time.Duration
	APITimeout         time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	StorageDriver string
	BoltPath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StateTTL      time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SessionKey    string
	CookieSecure  bool
	VisitorIdle   time.Duration
	StorefrontURL string

	TaxRate         decimal.Decimal
	RedirectGateway string
}

// Load reads .env when present, then the environment. Variables already set win over
// the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error
	durationVar := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	intVar := func(key, def string) int {
		n, err := strconv.Atoi(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}
	boolVar := func(key, def string) bool {
		b, err := strconv.ParseBool(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "9090"),
		APIBaseURL:         strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		RequestTimeout:     durationVar("REQUEST_TIMEOUT", "30s"),
		APITimeout:         durationVar("API_TIMEOUT", "10s"),
		ShutdownTimeout:    durationVar("SHUTDOWN_TIMEOUT", "10s"),
		MaxRequestBodySize: 1 << 20, // 1MB
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		BoltPath:      getEnv("BOLT_PATH", "storefront.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       intVar("REDIS_DB", "0"),
		StateTTL:      durationVar("STATE_TTL", "720h"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "storefront-events"),

		SessionKey:    getEnv("SESSION_KEY", ""),
		CookieSecure:  boolVar("COOKIE_SECURE", "false"),
		VisitorIdle:   durationVar("VISITOR_IDLE_TTL", "30m"),
		StorefrontURL: strings.TrimRight(getEnv("STOREFRONT_URL", "http://localhost:3000"), "/"),

		RedirectGateway: getEnv("REDIRECT_PAYMENT_METHOD", "paystack"),
	}

	rate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.05"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TAX_RATE: %w", err))
	}
	cfg.TaxRate = rate

	switch cfg.StorageDriver {
	case StorageMemory, StorageBolt, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER: unknown driver %q", cfg.StorageDriver))
	}
	if len(cfg.SessionKey) > 0 && len(cfg.SessionKey) < 32 {
		errs = append(errs, errors.New("SESSION_KEY: must be at least 32 bytes"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// CheckoutCallbackURL is where the payment gateway sends the buyer back.
func (c *Config) CheckoutCallbackURL() string {
	return c.StorefrontURL + "/checkout"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
