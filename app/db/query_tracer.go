package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/wealthflow/app/observability/metrics"
)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	verb string
}

// QueryMetrics is a pgx.QueryTracer feeding the db_query_* instruments.
// A pgx.ErrNoRows outcome is not counted as an error.
type QueryMetrics struct {
	now func() time.Time
}

var _ pgx.QueryTracer = (*QueryMetrics)(nil)

func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{now: time.Now}
}

func (q *QueryMetrics) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: q.now(), verb: statementVerb(data.SQL)})
}

func (q *QueryMetrics) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("db.operation", start.verb))
	m.DbQueryDurationSeconds.Record(ctx, q.now().Sub(start.at).Seconds(), attrs)
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// statementVerb returns the leading keyword of a statement, upper-cased.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}
