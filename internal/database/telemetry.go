package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kobimpw/Economic-terminal/internal/database"

// TracedPool wraps a DatabasePool and opens a client span per statement.
type TracedPool struct {
	pool   DatabasePool
	tracer trace.Tracer
}

// NewTracedPool wraps pool. A nil tracer uses the global provider.
func NewTracedPool(pool DatabasePool, tracer trace.Tracer) *TracedPool {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &TracedPool{pool: pool, tracer: tracer}
}

func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := p.start(ctx, "db.query", sql)
	defer span.End()

	rows, err := p.pool.Query(ctx, sql, args...)
	RecordDatabaseError(span, err)
	return rows, err
}

// QueryRow spans only the round trip; scan errors surface to the caller.
func (p *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := p.start(ctx, "db.query_row", sql)
	defer span.End()

	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := p.start(ctx, "db.exec", sql)
	defer span.End()

	tag, err := p.pool.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	RecordDatabaseError(span, err)
	return tag, err
}

func (p *TracedPool) start(ctx context.Context, name, sql string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBQueryText(strings.TrimSpace(sql)),
		),
	)
}

// RecordDatabaseError marks span as failed when err is non-nil.
func RecordDatabaseError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
