// Package instrumented decorates an adapter with structured logging,
// Prometheus metrics and OpenTelemetry spans.
package instrumented

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

var defaultTracer = otel.Tracer("datamap/adapter")

// Options configures the decorator. Every field is optional.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Adapter wraps another adapter
type Adapter struct {
	inner   adapter.Adapter
	name    string
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

var _ adapter.Adapter = (*Adapter)(nil)

// Wrap decorates inner. name labels the adapter in logs, metrics and spans.
func Wrap(inner adapter.Adapter, name string, opts Options) *Adapter {
	a := &Adapter{
		inner:   inner,
		name:    name,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.tracer == nil {
		a.tracer = defaultTracer
	}
	return a
}

// Unwrap returns the decorated adapter
func (a *Adapter) Unwrap() adapter.Adapter {
	return a.inner
}

// observe runs fn inside a span and records its outcome
func (a *Adapter) observe(ctx context.Context, op string, m *schema.Model, fn func(ctx context.Context) error) error {
	model := ""
	if m != nil {
		model = m.Name()
	}

	ctx, span := a.tracer.Start(ctx, "adapter."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("datamap.adapter", a.name),
			attribute.String("datamap.model", model),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if a.metrics != nil {
		a.metrics.OperationsTotal.WithLabelValues(a.name, model, op, outcome).Inc()
		a.metrics.OperationDuration.WithLabelValues(a.name, model, op).Observe(elapsed.Seconds())
	}

	fields := []zap.Field{
		zap.String("adapter", a.name),
		zap.String("model", model),
		zap.String("op", op),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		a.logger.Warn("adapter operation failed", append(fields, zap.Error(err))...)
	} else {
		a.logger.Debug("adapter operation", fields...)
	}

	return err
}

func (a *Adapter) One(ctx context.Context, m *schema.Model, where adapter.Where, opts *adapter.SingleOptions) (rec adapter.Record, err error) {
	err = a.observe(ctx, "one", m, func(ctx context.Context) error {
		rec, err = a.inner.One(ctx, m, where, opts)
		return err
	})
	return rec, err
}

func (a *Adapter) OneByID(ctx context.Context, m *schema.Model, id any, opts *adapter.SingleOptions) (rec adapter.Record, err error) {
	err = a.observe(ctx, "one_by_id", m, func(ctx context.Context) error {
		rec, err = a.inner.OneByID(ctx, m, id, opts)
		return err
	})
	return rec, err
}

func (a *Adapter) OneBySQL(ctx context.Context, m *schema.Model, query string, params []any, opts *adapter.SingleOptions) (rec adapter.Record, err error) {
	err = a.observe(ctx, "one_by_sql", m, func(ctx context.Context) error {
		rec, err = a.inner.OneBySQL(ctx, m, query, params, opts)
		return err
	})
	return rec, err
}

func (a *Adapter) Some(ctx context.Context, m *schema.Model, where adapter.Where, opts *adapter.MultiOptions) (recs []adapter.Record, err error) {
	err = a.observe(ctx, "some", m, func(ctx context.Context) error {
		recs, err = a.inner.Some(ctx, m, where, opts)
		return err
	})
	return recs, err
}

func (a *Adapter) SomeBySQL(ctx context.Context, m *schema.Model, query string, params []any, opts *adapter.MultiOptions) (recs []adapter.Record, err error) {
	err = a.observe(ctx, "some_by_sql", m, func(ctx context.Context) error {
		recs, err = a.inner.SomeBySQL(ctx, m, query, params, opts)
		return err
	})
	return recs, err
}

func (a *Adapter) All(ctx context.Context, m *schema.Model, opts *adapter.MultiOptions) (recs []adapter.Record, err error) {
	err = a.observe(ctx, "all", m, func(ctx context.Context) error {
		recs, err = a.inner.All(ctx, m, opts)
		return err
	})
	return recs, err
}

func (a *Adapter) CreateRecord(ctx context.Context, m *schema.Model, props adapter.Record) (rec adapter.Record, err error) {
	err = a.observe(ctx, "create_record", m, func(ctx context.Context) error {
		rec, err = a.inner.CreateRecord(ctx, m, props)
		return err
	})
	return rec, err
}

func (a *Adapter) CreateSome(ctx context.Context, m *schema.Model, records []adapter.Record) (n int64, err error) {
	err = a.observe(ctx, "create_some", m, func(ctx context.Context) error {
		n, err = a.inner.CreateSome(ctx, m, records)
		return err
	})
	return n, err
}

func (a *Adapter) UpdateRecord(ctx context.Context, m *schema.Model, id any, props adapter.Record) (rec adapter.Record, err error) {
	err = a.observe(ctx, "update_record", m, func(ctx context.Context) error {
		rec, err = a.inner.UpdateRecord(ctx, m, id, props)
		return err
	})
	return rec, err
}

func (a *Adapter) DeleteRecord(ctx context.Context, m *schema.Model, id any) error {
	return a.observe(ctx, "delete_record", m, func(ctx context.Context) error {
		return a.inner.DeleteRecord(ctx, m, id)
	})
}

func (a *Adapter) DeleteAll(ctx context.Context, m *schema.Model) (n int64, err error) {
	err = a.observe(ctx, "delete_all", m, func(ctx context.Context) error {
		n, err = a.inner.DeleteAll(ctx, m)
		return err
	})
	return n, err
}

func (a *Adapter) DeleteSome(ctx context.Context, m *schema.Model, where adapter.Where) (n int64, err error) {
	err = a.observe(ctx, "delete_some", m, func(ctx context.Context) error {
		n, err = a.inner.DeleteSome(ctx, m, where)
		return err
	})
	return n, err
}

func (a *Adapter) DeleteOne(ctx context.Context, m *schema.Model, where adapter.Where) (n int64, err error) {
	err = a.observe(ctx, "delete_one", m, func(ctx context.Context) error {
		n, err = a.inner.DeleteOne(ctx, m, where)
		return err
	})
	return n, err
}

func (a *Adapter) DeleteOneByID(ctx context.Context, m *schema.Model, id any) (n int64, err error) {
	err = a.observe(ctx, "delete_one_by_id", m, func(ctx context.Context) error {
		n, err = a.inner.DeleteOneByID(ctx, m, id)
		return err
	})
	return n, err
}

func (a *Adapter) UpdateAll(ctx context.Context, m *schema.Model, props adapter.Record) (n int64, err error) {
	err = a.observe(ctx, "update_all", m, func(ctx context.Context) error {
		n, err = a.inner.UpdateAll(ctx, m, props)
		return err
	})
	return n, err
}

func (a *Adapter) UpdateSome(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (n int64, err error) {
	err = a.observe(ctx, "update_some", m, func(ctx context.Context) error {
		n, err = a.inner.UpdateSome(ctx, m, where, props)
		return err
	})
	return n, err
}

func (a *Adapter) UpdateOne(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (n int64, err error) {
	err = a.observe(ctx, "update_one", m, func(ctx context.Context) error {
		n, err = a.inner.UpdateOne(ctx, m, where, props)
		return err
	})
	return n, err
}

func (a *Adapter) UpdateOneByID(ctx context.Context, m *schema.Model, id any, props adapter.Record) (n int64, err error) {
	err = a.observe(ctx, "update_one_by_id", m, func(ctx context.Context) error {
		n, err = a.inner.UpdateOneByID(ctx, m, id, props)
		return err
	})
	return n, err
}

func (a *Adapter) Truncate(ctx context.Context, m *schema.Model) error {
	return a.observe(ctx, "truncate", m, func(ctx context.Context) error {
		return a.inner.Truncate(ctx, m)
	})
}

func (a *Adapter) CountAll(ctx context.Context, m *schema.Model) (n int64, err error) {
	err = a.observe(ctx, "count_all", m, func(ctx context.Context) error {
		n, err = a.inner.CountAll(ctx, m)
		return err
	})
	return n, err
}

func (a *Adapter) CountSome(ctx context.Context, m *schema.Model, where adapter.Where) (n int64, err error) {
	err = a.observe(ctx, "count_some", m, func(ctx context.Context) error {
		n, err = a.inner.CountSome(ctx, m, where)
		return err
	})
	return n, err
}

func (a *Adapter) Destroy(ctx context.Context) error {
	return a.observe(ctx, "destroy", nil, func(ctx context.Context) error {
		return a.inner.Destroy(ctx)
	})
}
