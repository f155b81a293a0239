// Package db opens the connection pools used by the session backends.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	// Drivers registered with database/sql.
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ConnectPostgres opens a pgx pool capped at maxConns connections and pings it.
func ConnectPostgres(ctx context.Context, databaseURL string, maxConns int, logger *slog.Logger) (*pgxpool.Pool, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = int32(clampConns(maxConns))
	config.ConnConfig.Tracer = newQueryTracer(logger)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// OpenSQL opens a database/sql handle for the "mysql" or "sqlite" driver and pings it.
func OpenSQL(ctx context.Context, driver, dsn string, maxConns int) (*sql.DB, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	handle, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	conns := clampConns(maxConns)
	if driver == "sqlite" {
		// SQLite serializes writers; more than one connection only produces SQLITE_BUSY.
		conns = 1
	}
	handle.SetMaxOpenConns(conns)
	handle.SetMaxIdleConns(conns)
	handle.SetConnMaxIdleTime(5 * time.Minute)

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	return handle, nil
}

func clampConns(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
