package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "STORE_DRIVER", "DATABASE_URL", "SESSION_BACKEND", "REDIS_URL", "SESSION_SECRET",
	"SESSION_TTL", "COOKIE_SECURE", "SESSION_SWEEP", "BCRYPT_COST", "LOG_LEVEL",
}

// unsets every config key for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "0123456789abcdef")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "members.db", cfg.DatabaseURL)
	assert.Equal(t, SessionBackendStore, cfg.SessionBackend)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "@every 1h", cfg.SessionSweep)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, `
# comment
SESSION_SECRET=file-secret-0123456789
SESSION_TTL=1h
PORT=9000
STORE_DRIVER=postgres
DATABASE_URL="postgres://u:p@localhost:5432/members?sslmode=disable"
COOKIE_SECURE=false
SESSION_SWEEP=
`)
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "environment wins over the file")
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://u:p@localhost:5432/members?sslmode=disable", cfg.DatabaseURL)
	assert.False(t, cfg.CookieSecure)
	assert.Empty(t, cfg.SessionSweep, "an explicit empty schedule disables the sweeper")
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "0123456789abcdef")

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestLoad_ParseErrors(t *testing.T) {
	for key, value := range map[string]string{
		"SESSION_TTL":   "forever",
		"COOKIE_SECURE": "maybe",
		"BCRYPT_COST":   "twelve",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SESSION_SECRET", "0123456789abcdef")
			t.Setenv(key, value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StoreDriver:    DriverMemory,
			SessionBackend: SessionBackendStore,
			SessionSecret:  "0123456789abcdef",
			SessionTTL:     time.Hour,
			BcryptCost:     12,
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.SessionSecret = "short" }},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"negative ttl", func(c *Config) { c.SessionTTL = -time.Minute }},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }},
		{"unknown backend", func(c *Config) { c.SessionBackend = "memcached" }},
		{"redis without url", func(c *Config) { c.SessionBackend = SessionBackendRedis }},
		{"cost too low", func(c *Config) { c.BcryptCost = 3 }},
		{"cost too high", func(c *Config) { c.BcryptCost = 32 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_SetEnvironmentWinsEvenWhenEmpty(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, `
SESSION_SECRET=file-secret-0123456789
PORT=9000
SESSION_SWEEP=@every 5m
`)
	t.Setenv("PORT", "")
	t.Setenv("SESSION_SWEEP", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port, "an empty PORT falls back to the default, not the file")
	assert.Empty(t, cfg.SessionSweep)

	require.NoError(t, os.Unsetenv("PORT"))
	require.NoError(t, os.Unsetenv("SESSION_SWEEP"))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "@every 5m", cfg.SessionSweep)
}
