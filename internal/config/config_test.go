package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, decimal.RequireFromString("0.05").Equal(cfg.TaxRate))
	assert.Equal(t, "paystack", cfg.RedirectGateway)
	assert.Equal(t, "http://localhost:3000/checkout", cfg.CheckoutCallbackURL())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")
	t.Setenv("STORAGE_DRIVER", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("API_TIMEOUT", "2s")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, StorageRedis, cfg.StorageDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.APITimeout)
	assert.True(t, cfg.CookieSecure)
}

func TestFromEnv_CollectsErrors(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")
	t.Setenv("STORAGE_DRIVER", "floppy")
	t.Setenv("TAX_RATE", "five percent")
	t.Setenv("SESSION_KEY", "short")

	_, err := FromEnv()
	require.Error(t, err)
	for _, key := range []string{"API_TIMEOUT", "STORAGE_DRIVER", "TAX_RATE", "SESSION_KEY"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_PORT=9999\nKAFKA_TOPIC=from-file\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("KAFKA_TOPIC", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("HTTP_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "from-env", cfg.KafkaTopic)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load()
	assert.NoError(t, err)
}
