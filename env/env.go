// this package loads the server configuration from an optional .env file and the process environment.
// A variable set in the environment wins over the file, even when it is set to the empty string.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	SessionBackendStore = "store"
	SessionBackendRedis = "redis"

	minSecretLength = 16
)

type Config struct {
	Port           string
	StoreDriver    string
	DatabaseURL    string
	SessionBackend string
	RedisURL       string
	SessionSecret  string
	SessionTTL     time.Duration
	CookieSecure   bool
	SessionSweep   string // cron spec, empty disables the sweeper
	BcryptCost     int
	LogLevel       string
}

// Processes a .env file from a given filename. A missing file yields an empty map.
func ProcessEnv(filename string) (map[string]string, error) {
	envMap, err := godotenv.Read(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return envMap, nil
}

// Load builds and validates a Config. filename may be empty to skip the .env file.
func Load(filename string) (*Config, error) {
	fileVars := map[string]string{}
	if filename != "" {
		var err error
		fileVars, err = ProcessEnv(filename)
		if err != nil {
			return nil, err
		}
	}
	// A key present in the process environment wins over the file, even when empty.
	lookupVar := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
	lookup := func(key string) string {
		v, _ := lookupVar(key)
		return v
	}

	cfg := &Config{
		Port:           withDefault(lookup("PORT"), "8080"),
		StoreDriver:    withDefault(lookup("STORE_DRIVER"), DriverSQLite),
		DatabaseURL:    withDefault(lookup("DATABASE_URL"), "members.db"),
		SessionBackend: withDefault(lookup("SESSION_BACKEND"), SessionBackendStore),
		RedisURL:       lookup("REDIS_URL"),
		SessionSecret:  lookup("SESSION_SECRET"),
		LogLevel:       withDefault(lookup("LOG_LEVEL"), "info"),
	}

	// unlike the other keys, an empty schedule is meaningful: it disables the sweeper
	sweep, ok := lookupVar("SESSION_SWEEP")
	if !ok {
		sweep = "@every 1h"
	}
	cfg.SessionSweep = sweep

	var err error
	if cfg.SessionTTL, err = parseDuration(lookup("SESSION_TTL"), 8*time.Hour); err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	if cfg.CookieSecure, err = parseBool(lookup("COOKIE_SECURE"), true); err != nil {
		return nil, fmt.Errorf("COOKIE_SECURE: %w", err)
	}
	if cfg.BcryptCost, err = parseInt(lookup("BCRYPT_COST"), 12); err != nil {
		return nil, fmt.Errorf("BCRYPT_COST: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.SessionSecret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	switch c.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.SessionBackend {
	case SessionBackendStore:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d out of range", c.BcryptCost)
	}
	return nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func parseBool(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func parseInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
