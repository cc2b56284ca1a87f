package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Port        string        `env:"PORT,default=8080"`
	Store       string        `env:"STORE,default=sqlite"`
	DBPath      string        `env:"DB_PATH,default=parley.db"`
	BadgerPath  string        `env:"BADGER_PATH,default=parley-badger"`
	PageSize    int           `env:"PAGE_SIZE,default=20"`
	ReplyDelay  time.Duration `env:"REPLY_DELAY,default=1500ms"`
	ReplySender string        `env:"REPLY_SENDER,default=Gemini"`
	LogLevel    string        `env:"LOG_LEVEL,default=INFO"`
}

// Load reads configuration from environment variables with sensible defaults
// and validates it.
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("config: PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.ReplyDelay <= 0 {
		return fmt.Errorf("config: REPLY_DELAY must be positive, got %s", c.ReplyDelay)
	}
	switch c.Store {
	case StoreSQLite, StoreBadger:
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	return nil
}
