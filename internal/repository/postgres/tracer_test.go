package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestQueryOp(t *testing.T) {
	cases := map[string]string{
		"SELECT 1":                            "SELECT",
		"\n\t  insert into monitors(id)":      "INSERT",
		"-- claim batch\nUPDATE outbox SET x": "UPDATE",
		"WITH due AS (SELECT 1)":              "WITH",
		"select(1)":                           "SELECT",
		"":                                    "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, queryOp(sql), sql)
	}
}

func TestQueryTracer_Span(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var tr queryTracer
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "DELETE FROM check_results WHERE id = $1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("DELETE 3")})

	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT * FROM monitors"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "postgres.delete", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	var rows int64 = -1
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "db.rows_affected" {
			rows = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(3), rows)

	assert.Equal(t, "postgres.select", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestQueryTracer_EndWithoutStart(t *testing.T) {
	assert.NotPanics(t, func() {
		queryTracer{}.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	})
}
