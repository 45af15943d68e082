package obs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	WithTrace(context.Background(), log).Info("no span")
	assert.Empty(t, logs.All()[0].Context)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "check")
	defer span.End()

	WithTrace(ctx, log).Info("in span")
	fields := logs.All()[1].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])

	assert.Nil(t, WithTrace(ctx, nil))
}

func TestEndSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tr := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer("test")

	_, ok := tr.Start(context.Background(), "ok")
	EndSpan(ok, nil)
	_, bad := tr.Start(context.Background(), "bad")
	EndSpan(bad, errors.New("broker unavailable"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "broker unavailable", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)
	assert.Equal(t, "exception", ended[1].Events()[0].Name)
}
