package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/gitshopapp/sessionstore/internal/db"
)

const defaultSQLitePath = "sessions.db"

// Config selects and addresses the backend. URL, when set, wins over the
// discrete host/port/credential fields.
type Config struct {
	Dialect        Dialect
	URL            string
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	Table          string
	MaxConnections int
	RedisURL       string
}

// DSN renders the connection string for the configured SQL dialect.
func (c Config) DSN() (string, error) {
	if dsn := strings.TrimSpace(c.URL); dsn != "" {
		return dsn, nil
	}

	switch c.Dialect {
	case Postgres:
		u := &url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		return u.String(), nil
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		cfg.DBName = c.Database
		return cfg.FormatDSN(), nil
	case SQLite:
		if c.Database == "" {
			return defaultSQLitePath, nil
		}
		return c.Database, nil
	default:
		return "", fmt.Errorf("dialect %s has no SQL connection string", c.Dialect)
	}
}

// Open connects the configured variant. The caller owns the returned backend and must Close it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	switch cfg.Dialect {
	case Postgres:
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		pool, err := db.ConnectPostgres(ctx, dsn, cfg.MaxConnections, logger)
		if err != nil {
			return nil, err
		}
		b, err := NewPostgres(pool, table)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return b, nil
	case MySQL, SQLite:
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		handle, err := db.OpenSQL(ctx, string(cfg.Dialect), dsn, cfg.MaxConnections)
		if err != nil {
			return nil, err
		}
		b, err := NewDatabaseSQL(cfg.Dialect, handle, table)
		if err != nil {
			_ = handle.Close()
			return nil, err
		}
		return b, nil
	case Redis:
		return NewRedis(ctx, cfg.RedisURL, table)
	case Memory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Dialect)
	}
}
