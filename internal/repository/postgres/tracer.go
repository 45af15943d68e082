package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NordCoder/Sitewatch/internal/obs"
)

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "postgres_query_duration_seconds",
	Help:    "Statement latency by leading SQL verb.",
	Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
}, []string{"op", "outcome"})

// queryTracer turns every pgx statement into a client span and a latency
// sample. It is installed on the pool's connection config.
type queryTracer struct{}

var _ pgx.QueryTracer = queryTracer{}

type queryStartKey struct{}

type queryStart struct {
	op    string
	began time.Time
}

func (queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := queryOp(data.SQL)
	ctx, _ = otel.Tracer("postgres").Start(ctx, "postgres."+strings.ToLower(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{op: op, began: time.Now()})
}

func (queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	outcome := "ok"
	if data.Err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(st.op, outcome).Observe(time.Since(st.began).Seconds())

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	obs.EndSpan(span, data.Err)
}

// queryOp is the leading SQL keyword, skipping whitespace and line comments.
func queryOp(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if i := strings.IndexAny(line, " (\t;"); i > 0 {
			line = line[:i]
		}
		return strings.ToUpper(line)
	}
	return "UNKNOWN"
}
