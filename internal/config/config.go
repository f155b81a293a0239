package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gitshopapp/sessionstore/internal/backend"
	"github.com/gitshopapp/sessionstore/internal/logging"
	"github.com/gitshopapp/sessionstore/internal/session"
)

type Config struct {
	ConfigFile string `env:"CONFIG_FILE" yaml:"-"`

	DatabaseDialect        string `env:"DATABASE_DIALECT" envDefault:"postgres" yaml:"database_dialect" validate:"required"`
	DatabaseURL            string `env:"DATABASE_URL" yaml:"database_url"`
	DatabaseHost           string `env:"DATABASE_HOST" envDefault:"localhost" yaml:"database_host"`
	DatabasePort           int    `env:"DATABASE_PORT" envDefault:"5432" yaml:"database_port" validate:"min=1,max=65535"`
	DatabaseName           string `env:"DATABASE_NAME" yaml:"database_name"`
	DatabaseUser           string `env:"DATABASE_USER" yaml:"database_user"`
	DatabasePassword       string `env:"DATABASE_PASSWORD" yaml:"database_password"`
	DatabaseMaxConnections int    `env:"DATABASE_MAX_CONNECTIONS" envDefault:"5" yaml:"database_max_connections"`
	RedisConnectionString  string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" yaml:"redis_connection_string" validate:"required_if=DatabaseDialect redis"`

	SessionTableName       string        `env:"SESSION_TABLE_NAME" envDefault:"async_sessions" yaml:"session_table_name" validate:"required"`
	SessionLifespan        time.Duration `env:"SESSION_LIFESPAN" envDefault:"6h" yaml:"session_lifespan" validate:"gt=0"`
	SessionMemoryLifespan  time.Duration `env:"SESSION_MEMORY_LIFESPAN" envDefault:"60m" yaml:"session_memory_lifespan" validate:"gt=0"`
	SessionCookieName      string        `env:"SESSION_COOKIE_NAME" envDefault:"session" yaml:"session_cookie_name" validate:"required"`
	SessionCookiePath      string        `env:"SESSION_COOKIE_PATH" envDefault:"/" yaml:"session_cookie_path" validate:"required,startswith=/"`
	SessionSecureCookies   bool          `env:"SESSION_SECURE_COOKIES" envDefault:"false" yaml:"session_secure_cookies"`
	SessionConcurrentLoads bool          `env:"SESSION_CONCURRENT_LOADS" envDefault:"false" yaml:"session_concurrent_loads"`
	SessionAutoSave        bool          `env:"SESSION_AUTO_SAVE" envDefault:"true" yaml:"session_auto_save"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO" yaml:"log_level"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" yaml:"log_format" validate:"omitempty,oneof=text json"`
	LogFile   string     `env:"LOG_FILE" yaml:"log_file"`
	Port      string     `env:"PORT" envDefault:"8080" yaml:"port"`
	BaseURL   string     `env:"BASE_URL" yaml:"base_url" validate:"omitempty,url"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otlp_endpoint"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"sessionstore" yaml:"service_name"`
}

var (
	configValidator = validator.New()
	dotenvOnce      sync.Once
)

// Load reads the environment (after a .env file in the working directory, if
// any) and, when CONFIG_FILE is set, overlays the YAML file on top of it.
func Load() (*Config, error) {
	dotenvOnce.Do(func() {
		// Variables already set win; a missing .env is fine.
		_ = godotenv.Load()
	})

	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if path := strings.TrimSpace(cfg.ConfigFile); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	dialect, err := backend.ParseDialect(c.DatabaseDialect)
	if err != nil {
		return err
	}
	c.DatabaseDialect = string(dialect)

	if err := backend.ValidateTableName(c.SessionTableName); err != nil {
		return err
	}

	if c.SessionMemoryLifespan > c.SessionLifespan {
		return fmt.Errorf("SESSION_MEMORY_LIFESPAN must not exceed SESSION_LIFESPAN")
	}

	if c.DatabaseMaxConnections < 1 {
		c.DatabaseMaxConnections = 1
	}

	return nil
}

// Backend returns the backend selection and addressing.
func (c *Config) Backend() backend.Config {
	return backend.Config{
		Dialect:        backend.Dialect(c.DatabaseDialect),
		URL:            c.DatabaseURL,
		Host:           c.DatabaseHost,
		Port:           c.DatabasePort,
		Database:       c.DatabaseName,
		User:           c.DatabaseUser,
		Password:       c.DatabasePassword,
		Table:          c.SessionTableName,
		MaxConnections: c.DatabaseMaxConnections,
		RedisURL:       c.RedisConnectionString,
	}
}

// Session returns the session store settings.
func (c *Config) Session() session.Config {
	return session.Config{
		Lifespan:        c.SessionLifespan,
		MemoryLifespan:  c.SessionMemoryLifespan,
		CookieName:      c.SessionCookieName,
		CookiePath:      c.SessionCookiePath,
		SecureCookies:   c.SessionSecureCookies,
		ConcurrentLoads: c.SessionConcurrentLoads,
	}
}

// Logging returns the logger options.
func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	}
}
