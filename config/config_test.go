package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, "orderledger.db", cfg.DB.DSN)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.True(t, cfg.App.IsDev())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ORDERLEDGER_APP_PORT", "9090")
	t.Setenv("ORDERLEDGER_APP_ENV", "prod")
	t.Setenv("ORDERLEDGER_DB_DRIVER", "postgres")
	t.Setenv("ORDERLEDGER_DB_DSN", "postgres://localhost/ledger?sslmode=disable")
	t.Setenv("ORDERLEDGER_HTTP_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadFrom()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.App.IsProd())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
}

func TestDotenvDoesNotOverrideEnvironment(t *testing.T) {
	// GIVEN: a .env file and an explicit environment variable
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERLEDGER_APP_PORT=7000\nORDERLEDGER_APP_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("ORDERLEDGER_APP_PORT", "7100")
	// t.Setenv registers cleanup; the dotenv-only key needs its own
	t.Setenv("ORDERLEDGER_APP_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("ORDERLEDGER_APP_LOG_LEVEL"))

	// WHEN
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	// THEN: the environment wins, the file fills the gaps
	assert.Equal(t, 7100, cfg.App.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Setenv("ORDERLEDGER_DB_DRIVER", "mysql")
	t.Setenv("ORDERLEDGER_APP_LOG_FORMAT", "xml")

	_, err := LoadFrom()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDERLEDGER_DB_DRIVER")
	assert.Contains(t, err.Error(), "ORDERLEDGER_APP_LOG_FORMAT")
}
