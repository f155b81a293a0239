package db

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gitshopapp/sessionstore/internal/logging"
)

type queryStartContextKey struct{}

type queryStart struct {
	query string
	at    time.Time
}

// queryTracer logs every pgx statement at debug level with its duration.
type queryTracer struct {
	logger *slog.Logger
}

func newQueryTracer(logger *slog.Logger) *queryTracer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &queryTracer{logger: logger.With("component", "pgx")}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartContextKey{}, queryStart{
		query: normalizeQuery(data.SQL),
		at:    time.Now(),
	})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartContextKey{}).(queryStart)
	if !ok {
		return
	}

	logger := logging.FromContext(ctx, t.logger)
	attrs := []any{
		"operation", queryOperation(start.query),
		"query", start.query,
		"duration_ms", time.Since(start.at).Milliseconds(),
	}
	if rows := data.CommandTag.RowsAffected(); rows >= 0 {
		attrs = append(attrs, "rows_affected", rows)
	}

	if data.Err != nil {
		logger.Debug("query failed", append(attrs, "error", data.Err)...)
		return
	}
	logger.Debug("query completed", attrs...)
}

func normalizeQuery(query string) string {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return "sql.query"
	}

	normalized = strings.Join(strings.Fields(normalized), " ")
	const maxLen = 512
	if len(normalized) > maxLen {
		return normalized[:maxLen]
	}
	return normalized
}

func queryOperation(query string) string {
	if query == "" {
		return ""
	}

	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}
