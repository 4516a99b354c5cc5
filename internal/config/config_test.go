package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{"JWT_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, "book-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.False(t, cfg.EnableHSTS)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{
		"JWT_SECRET":           "s3cret",
		"APP_ADDR":             ":9090",
		"STORE_DRIVER":         "Memory",
		"DB_TIMEOUT":           "750ms",
		"KAFKA_BROKERS":        "k1:9092, k2:9092,",
		"CORS_ALLOWED_ORIGINS": "http://localhost:3000",
		"RATE_LIMIT_RPS":       "2.5",
		"ENABLE_HSTS":          "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.DBTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 1e-9)
	assert.True(t, cfg.EnableHSTS)
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	_, err := load(envFrom(map[string]string{
		"STORE_DRIVER": "mongo",
		"JWT_TTL":      "forever",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET is required")
	assert.Contains(t, msg, "STORE_DRIVER")
	assert.Contains(t, msg, "JWT_TTL")
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=from_file\nKAFKA_TOPIC=from_file\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("DB_DSN", "from_env")
	t.Setenv("KAFKA_TOPIC", "")
	os.Unsetenv("KAFKA_TOPIC")
	t.Chdir(tmp)

	LoadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("DB_DSN"), "existing env wins")
	assert.Equal(t, "from_file", os.Getenv("KAFKA_TOPIC"))
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/books", RedactDSN("postgres://user:pw@db:5432/books"))
	assert.Equal(t, "host=db user=x", RedactDSN("host=db user=x"))
}
