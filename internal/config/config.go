// Package config loads rpg-sheet settings from the environment
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// Store kinds
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// StoreKinds lists the supported session-state stores
var StoreKinds = []string{StoreFile, StoreRedis, StoreSQLite, StoreMemory}

// maxRedisDB is the highest index in a default redis deployment
const maxRedisDB = 15

var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds all configuration for the application
type Config struct {
	// Document is a path to the character document; empty uses the bundled one
	Document string `env:"SHEET_DOCUMENT"`
	Store    string `env:"SHEET_STORE" envDefault:"file"`
	StateDir string `env:"SHEET_STATE_DIR" envDefault:".rpg-sheet"`
	Key      string `env:"SHEET_STATE_KEY" envDefault:"velsirion-character-state"`

	// Debounce delays durable writes; 0 writes after every change
	Debounce time.Duration `env:"SHEET_DEBOUNCE" envDefault:"0s"`
	LogLevel string        `env:"SHEET_LOG_LEVEL" envDefault:"info"`

	Redis  RedisConfig
	SQLite SQLiteConfig
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Addr     string `env:"SHEET_REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"SHEET_REDIS_PASSWORD"`
	DB       int    `env:"SHEET_REDIS_DB" envDefault:"0"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `env:"SHEET_SQLITE_PATH" envDefault:".rpg-sheet/state.db"`
}

// Load parses configuration from environment variables. It does not
// validate; callers apply flag overrides first and then call Validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}
	return cfg, nil
}

// Validate checks the configuration for the selected store
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateEnum("store", c.Store, StoreKinds, vb)
	errors.ValidateEnum("log_level", strings.ToLower(c.LogLevel), logLevels, vb)
	errors.ValidateRequired("key", c.Key, vb)
	if c.Debounce < 0 {
		vb.InvalidField("debounce", "must not be negative")
	}

	switch c.Store {
	case StoreFile:
		errors.ValidateRequired("state_dir", c.StateDir, vb)
	case StoreRedis:
		errors.ValidateRequired("redis.addr", c.Redis.Addr, vb)
		errors.ValidateRange("redis.db", c.Redis.DB, 0, maxRedisDB, vb)
	case StoreSQLite:
		errors.ValidateRequired("sqlite.path", c.SQLite.Path, vb)
	}

	return vb.Build()
}

// SlogLevel converts LogLevel for the slog handler. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
