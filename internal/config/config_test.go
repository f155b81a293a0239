package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gitshopapp/sessionstore/internal/backend"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_DIALECT", "CONFIG_FILE", "SESSION_LIFESPAN", "LOG_LEVEL"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.DatabaseDialect != string(backend.Postgres) {
		t.Fatalf("expected postgres dialect, got %q", cfg.DatabaseDialect)
	}
	if cfg.SessionLifespan != 6*time.Hour || cfg.SessionMemoryLifespan != time.Hour {
		t.Fatalf("unexpected lifespans: %s / %s", cfg.SessionLifespan, cfg.SessionMemoryLifespan)
	}
	if cfg.SessionTableName != backend.DefaultTable {
		t.Fatalf("unexpected table name %q", cfg.SessionTableName)
	}
	if cfg.SessionCookieName != "session" || cfg.SessionCookiePath != "/" {
		t.Fatalf("unexpected cookie settings %q %q", cfg.SessionCookieName, cfg.SessionCookiePath)
	}
	if cfg.DatabaseMaxConnections != 5 {
		t.Fatalf("expected 5 connections, got %d", cfg.DatabaseMaxConnections)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("expected info level, got %s", cfg.LogLevel)
	}
}

func TestValidateDialect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialect string
		want    backend.Dialect
		wantErr bool
	}{
		{name: "postgres alias", dialect: "PostgreSQL", want: backend.Postgres},
		{name: "sqlite alias", dialect: "sqlite3", want: backend.SQLite},
		{name: "mysql", dialect: "mysql", want: backend.MySQL},
		{name: "unsupported", dialect: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.DatabaseDialect = tt.dialect

			err := cfg.validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cfg.Backend().Dialect != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, cfg.Backend().Dialect)
			}
		})
	}
}

func TestValidateRedisConnectionStringForRedisDialect(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DatabaseDialect = "redis"
	cfg.RedisConnectionString = ""

	err := cfg.validate()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "RedisConnectionString") || !strings.Contains(err.Error(), "required_if") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTableName(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SessionTableName = "sessions; DROP TABLE users"

	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestValidateLifespans(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SessionMemoryLifespan = 2 * cfg.SessionLifespan
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for memory lifespan beyond durable lifespan")
	}

	cfg = validConfig()
	cfg.SessionLifespan = 0
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for zero lifespan")
	}
}

func TestValidateClampsMaxConnections(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DatabaseMaxConnections = 0

	if err := cfg.validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := cfg.Backend().MaxConnections; got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessionstore.yaml")
	content := strings.Join([]string{
		"database_dialect: sqlite",
		"database_name: /tmp/sessions.db",
		"session_lifespan: 30m",
		"session_memory_lifespan: 5m",
		"session_cookie_name: sid",
		"log_level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_DIALECT", "postgres")
	t.Setenv("SESSION_SECURE_COOKIES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Backend().Dialect != backend.SQLite {
		t.Fatalf("expected file to override dialect, got %s", cfg.DatabaseDialect)
	}
	sess := cfg.Session()
	if sess.Lifespan != 30*time.Minute || sess.MemoryLifespan != 5*time.Minute {
		t.Fatalf("unexpected lifespans: %s / %s", sess.Lifespan, sess.MemoryLifespan)
	}
	if sess.CookieName != "sid" || !sess.SecureCookies {
		t.Fatalf("unexpected cookie settings: %+v", sess)
	}
	if cfg.Logging().Level != slog.LevelDebug {
		t.Fatalf("expected debug level, got %s", cfg.Logging().Level)
	}
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func validConfig() Config {
	return Config{
		DatabaseDialect:        "postgres",
		DatabaseHost:           "localhost",
		DatabasePort:           5432,
		DatabaseMaxConnections: 5,
		RedisConnectionString:  "redis://localhost:6379/0",
		SessionTableName:       "async_sessions",
		SessionLifespan:        6 * time.Hour,
		SessionMemoryLifespan:  time.Hour,
		SessionCookieName:      "session",
		SessionCookiePath:      "/",
		LogFormat:              "text",
		Port:                   "8080",
		ServiceName:            "sessionstore",
	}
}
