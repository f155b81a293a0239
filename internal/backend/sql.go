package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// executor abstracts the connection pool behind a SQL variant.
type executor interface {
	exec(ctx context.Context, query string, args ...any) error
	queryString(ctx context.Context, query string, args ...any) (string, bool, error)
	queryInt(ctx context.Context, query string, args ...any) (int64, error)
	ping(ctx context.Context) error
	close() error
}

// SQL is the relational variant of Backend. One value serves any supported
// dialect; only the statement set and executor differ.
type SQL struct {
	dialect Dialect
	stmts   statements
	exec    executor
}

// NewPostgres builds a Postgres backend over a pgx pool. Closing the backend closes the pool.
func NewPostgres(pool *pgxpool.Pool, table string) (*SQL, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is required")
	}
	return newSQL(Postgres, table, pgxExecutor{pool: pool})
}

// NewDatabaseSQL builds a MySQL or SQLite backend over a database/sql handle.
// Closing the backend closes the handle.
func NewDatabaseSQL(dialect Dialect, handle *sql.DB, table string) (*SQL, error) {
	if handle == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if dialect != MySQL && dialect != SQLite {
		return nil, fmt.Errorf("dialect %s is not served by database/sql", dialect)
	}
	return newSQL(dialect, table, stdExecutor{db: handle})
}

func newSQL(dialect Dialect, table string, exec executor) (*SQL, error) {
	stmts, err := statementsFor(dialect, table)
	if err != nil {
		return nil, err
	}
	return &SQL{dialect: dialect, stmts: stmts, exec: exec}, nil
}

func (s *SQL) Dialect() Dialect {
	return s.dialect
}

func (s *SQL) Migrate(ctx context.Context) error {
	return storageError(s.dialect, "migrate", s.exec.exec(ctx, s.stmts.migrate))
}

func (s *SQL) DeleteExpired(ctx context.Context, before time.Time) error {
	err := s.exec.exec(ctx, s.stmts.deleteExpired, s.stmts.encodeTime(before))
	return storageError(s.dialect, "delete_expired", err)
}

func (s *SQL) Count(ctx context.Context) (int64, error) {
	n, err := s.exec.queryInt(ctx, s.stmts.count)
	if err != nil {
		return 0, storageError(s.dialect, "count", err)
	}
	return n, nil
}

func (s *SQL) Load(ctx context.Context, id string, asOf time.Time) (string, bool, error) {
	payload, found, err := s.exec.queryString(ctx, s.stmts.load, id, s.stmts.encodeTime(asOf))
	if err != nil {
		return "", false, storageError(s.dialect, "load", err)
	}
	return payload, found, nil
}

func (s *SQL) Store(ctx context.Context, id, payload string, expires time.Time) error {
	err := s.exec.exec(ctx, s.stmts.store, id, payload, s.stmts.encodeTime(expires))
	return storageError(s.dialect, "store", err)
}

func (s *SQL) Delete(ctx context.Context, id string) error {
	return storageError(s.dialect, "delete", s.exec.exec(ctx, s.stmts.delete, id))
}

func (s *SQL) DeleteAll(ctx context.Context) error {
	return storageError(s.dialect, "delete_all", s.exec.exec(ctx, s.stmts.deleteAll))
}

func (s *SQL) Ping(ctx context.Context) error {
	return storageError(s.dialect, "ping", s.exec.ping(ctx))
}

func (s *SQL) Close() error {
	return storageError(s.dialect, "close", s.exec.close())
}

type pgxExecutor struct {
	pool *pgxpool.Pool
}

func (e pgxExecutor) exec(ctx context.Context, query string, args ...any) error {
	_, err := e.pool.Exec(ctx, query, args...)
	return err
}

func (e pgxExecutor) queryString(ctx context.Context, query string, args ...any) (string, bool, error) {
	var out string
	err := e.pool.QueryRow(ctx, query, args...).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

func (e pgxExecutor) queryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var out int64
	err := e.pool.QueryRow(ctx, query, args...).Scan(&out)
	return out, err
}

func (e pgxExecutor) ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

func (e pgxExecutor) close() error {
	e.pool.Close()
	return nil
}

type stdExecutor struct {
	db *sql.DB
}

func (e stdExecutor) exec(ctx context.Context, query string, args ...any) error {
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

func (e stdExecutor) queryString(ctx context.Context, query string, args ...any) (string, bool, error) {
	var out string
	err := e.db.QueryRowContext(ctx, query, args...).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

func (e stdExecutor) queryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var out int64
	err := e.db.QueryRowContext(ctx, query, args...).Scan(&out)
	return out, err
}

func (e stdExecutor) ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e stdExecutor) close() error {
	return e.db.Close()
}
