// Package backend persists serialized sessions in a relational table.
//
// Every variant exposes the same small set of logical operations. The SQL
// variants differ only in statement text (placeholders, upsert syntax, DDL and
// expiry encoding), which lives in statements.go; the orchestration that calls
// them lives in the session package and is shared by all dialects.
package backend

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Dialect names a supported storage engine.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	Redis    Dialect = "redis"
	Memory   Dialect = "memory"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "async_sessions"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Backend is the persistence contract used by the session store. Callers pass
// identifiers, serialized payloads and timestamps; never SQL.
//
// No operation retries on its own. Failures are returned as *StorageError.
type Backend interface {
	Dialect() Dialect

	// Migrate creates the session table when it does not exist.
	Migrate(ctx context.Context) error

	// DeleteExpired removes rows whose expiry is before the given time.
	DeleteExpired(ctx context.Context, before time.Time) error

	// Count returns the number of persisted rows.
	Count(ctx context.Context) (int64, error)

	// Load returns the payload stored for id when its expiry is null or after asOf.
	Load(ctx context.Context, id string, asOf time.Time) (payload string, found bool, err error)

	// Store inserts or replaces the payload and expiry for id.
	Store(ctx context.Context, id, payload string, expires time.Time) error

	// Delete removes the row for id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every row in the table.
	DeleteAll(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// ParseDialect normalizes a configured dialect name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case Postgres, MySQL, SQLite, Redis, Memory:
		return d, nil
	case "postgresql", "pg":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	case "":
		return "", fmt.Errorf("database dialect is required")
	default:
		return "", fmt.Errorf("unsupported database dialect: %s", name)
	}
}

// ValidateTableName rejects names that cannot be substituted into statements verbatim.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
