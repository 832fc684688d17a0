// Package config loads server settings from the environment.
//
// Variables are prefixed with ORDERLEDGER_. A .env file in the working
// directory is read first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

const EnvPrefix = "ORDERLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App  AppConfig
	DB   DBConfig
	HTTP HTTPConfig
}

type AppConfig struct {
	Env       string `split_words:"true" default:"dev"`
	Port      int    `split_words:"true" default:"8080"`
	LogLevel  string `split_words:"true" default:"info"`
	LogFormat string `split_words:"true" default:"json"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type DBConfig struct {
	Driver string `split_words:"true" default:"sqlite3"`
	// DSN is a file path for sqlite3 (":memory:" allowed) and a
	// connection URL for postgres.
	DSN string `split_words:"true" default:"orderledger.db"`

	MaxOpenConns    int           `split_words:"true" default:"20"`
	MaxIdleConns    int           `split_words:"true" default:"10"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"1h"`
}

type HTTPConfig struct {
	CORSOrigins     []string      `split_words:"true" default:"*"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with explicit dotenv files. Missing files are skipped.
func LoadFrom(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("%s_APP_PORT: %d out of range", EnvPrefix, c.App.Port))
	}
	switch c.App.LogFormat {
	case "json", "console":
	default:
		errs = multierr.Append(errs, fmt.Errorf("%s_APP_LOG_FORMAT: unknown format %q", EnvPrefix, c.App.LogFormat))
	}
	switch c.DB.Driver {
	case "sqlite3", "postgres":
	default:
		errs = multierr.Append(errs, fmt.Errorf("%s_DB_DRIVER: unsupported driver %q", EnvPrefix, c.DB.Driver))
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s_DB_DSN is required", EnvPrefix))
	}
	return errs
}

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.App.Port) }
