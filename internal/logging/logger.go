package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Options selects the console format and an optional JSON file sink.
type Options struct {
	Level  slog.Level
	Format string
	File   string
}

// New builds the process logger. Text output goes through tint; "json" uses the
// standard JSON handler. When File is set, records are also appended to it as JSON.
// The returned closer releases the file sink and is never nil.
func New(out io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	if out == nil {
		out = os.Stdout
	}

	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})
	case "text", "":
		console = tint.NewHandler(out, &tint.Options{Level: opts.Level})
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}

	path := strings.TrimSpace(opts.File)
	if path == "" {
		return slog.New(console), nopCloser{}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: opts.Level})

	return slog.New(MultiHandler(console, fileHandler)), file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MultiHandler fans out slog records to multiple handlers.
func MultiHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, handler := range handlers {
		if handler != nil {
			filtered = append(filtered, handler)
		}
	}
	if len(filtered) == 0 {
		return slog.NewTextHandler(io.Discard, nil)
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return multiHandler(filtered)
}

type multiHandler []slog.Handler

func (h multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var handleErr error
	for _, handler := range h {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		handleErr = errors.Join(handleErr, handler.Handle(ctx, record.Clone()))
	}
	return handleErr
}

func (h multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h))
	for _, handler := range h {
		next = append(next, handler.WithAttrs(attrs))
	}
	return multiHandler(next)
}

func (h multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h))
	for _, handler := range h {
		next = append(next, handler.WithGroup(name))
	}
	return multiHandler(next)
}
