package backend

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gitshopapp/sessionstore/internal/observability"
)

type instrumented struct {
	next    Backend
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// Instrument wraps b so every operation records a span, a latency sample and,
// on failure, an error count. A nil metrics value only traces.
func Instrument(b Backend, metrics *observability.Metrics) Backend {
	if b == nil {
		return nil
	}
	return &instrumented{next: b, metrics: metrics, tracer: observability.Tracer()}
}

func (i *instrumented) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	dialect := string(i.next.Dialect())
	ctx, span := i.tracer.Start(ctx, "sessionstore.backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", dialect),
			attribute.String("db.operation", op),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	if i.metrics != nil {
		i.metrics.BackendDuration.WithLabelValues(dialect, op).Observe(time.Since(start).Seconds())
		if err != nil {
			i.metrics.BackendErrors.WithLabelValues(dialect, op).Inc()
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (i *instrumented) Dialect() Dialect {
	return i.next.Dialect()
}

func (i *instrumented) Migrate(ctx context.Context) error {
	return i.observe(ctx, "migrate", i.next.Migrate)
}

func (i *instrumented) DeleteExpired(ctx context.Context, before time.Time) error {
	return i.observe(ctx, "delete_expired", func(ctx context.Context) error {
		return i.next.DeleteExpired(ctx, before)
	})
}

func (i *instrumented) Count(ctx context.Context) (int64, error) {
	var n int64
	err := i.observe(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = i.next.Count(ctx)
		return err
	})
	return n, err
}

func (i *instrumented) Load(ctx context.Context, id string, asOf time.Time) (string, bool, error) {
	var (
		payload string
		found   bool
	)
	err := i.observe(ctx, "load", func(ctx context.Context) error {
		var err error
		payload, found, err = i.next.Load(ctx, id, asOf)
		return err
	})
	return payload, found, err
}

func (i *instrumented) Store(ctx context.Context, id, payload string, expires time.Time) error {
	return i.observe(ctx, "store", func(ctx context.Context) error {
		return i.next.Store(ctx, id, payload, expires)
	})
}

func (i *instrumented) Delete(ctx context.Context, id string) error {
	return i.observe(ctx, "delete", func(ctx context.Context) error {
		return i.next.Delete(ctx, id)
	})
}

func (i *instrumented) DeleteAll(ctx context.Context) error {
	return i.observe(ctx, "delete_all", i.next.DeleteAll)
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.observe(ctx, "ping", i.next.Ping)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
