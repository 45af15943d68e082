package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fixed time.Duration

func (f fixed) Next(int) time.Duration { return time.Duration(f) }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Policy{Name: "test_ok", Attempts: 3, Backoff: fixed(time.Millisecond)})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAndReportsLastError(t *testing.T) {
	var exhausted error
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("still broken")
	}, Policy{
		Name:      "test_exhaust",
		Attempts:  3,
		Backoff:   fixed(time.Millisecond),
		OnExhaust: func(err error) { exhausted = err },
	})

	require.EqualError(t, err, "still broken")
	assert.Equal(t, 3, calls)
	assert.Equal(t, err, exhausted)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return context.Canceled
	}, JobPolicy("test_cancel", 5, time.Millisecond, time.Millisecond, nil))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return errors.New("x") },
		Policy{Name: "test_ctx", Attempts: 3, Backoff: fixed(time.Hour)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpoJitter_Capped(t *testing.T) {
	b := ExpoJitter{Base: 200 * time.Millisecond, Max: 2 * time.Second}
	assert.Equal(t, 200*time.Millisecond, b.Next(0))
	assert.Equal(t, 400*time.Millisecond, b.Next(1))
	assert.Equal(t, 2*time.Second, b.Next(10))
}

func TestDo_RecordsAttemptsOnSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, span := tp.Tracer("test").Start(context.Background(), "correlate")

	err := Do(ctx, func() error { return errors.New("result not visible") },
		Policy{Name: "correlate", Attempts: 2, Backoff: fixed(time.Millisecond)})
	span.End()
	require.Error(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	events := ended[0].Events()
	require.Len(t, events, 3)
	assert.Equal(t, "retry.attempt", events[0].Name)
	assert.Equal(t, "retry.attempt", events[1].Name)
	assert.Equal(t, "retry.exhausted", events[2].Name)

	first := attribute.NewSet(events[0].Attributes...)
	policy, _ := first.Value("retry.policy")
	assert.Equal(t, "correlate", policy.AsString())
	attempt, _ := first.Value("retry.attempt")
	assert.EqualValues(t, 1, attempt.AsInt64())
	msg, _ := first.Value("retry.error")
	assert.Equal(t, "result not visible", msg.AsString())
	backoff, _ := first.Value("retry.backoff_ms")
	assert.EqualValues(t, 1, backoff.AsInt64())

	second := attribute.NewSet(events[1].Attributes...)
	attempt, _ = second.Value("retry.attempt")
	assert.EqualValues(t, 2, attempt.AsInt64())
	backoff, _ = second.Value("retry.backoff_ms")
	assert.Zero(t, backoff.AsInt64(), "no wait after the last attempt")
}

func TestDo_NilBackoffUsesDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("blip")
		}
		return nil
	}, Policy{Attempts: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
