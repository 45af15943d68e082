package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max and spreads each wait by
// ±Jitter (0..1).
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	attempt = max(attempt, 0)
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

// Policy names a retried operation. The name labels metrics and span events,
// so keep it low-cardinality ("check", "correlate", "outbox_alert_raised").
type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

func (p Policy) withDefaults() Policy {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second}
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return err != nil }
	}
	return p
}

var (
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Attempts made inside retry.Do, the final one included.",
	}, []string{"name"})
	retryExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_exhausted_total",
		Help: "Operations that gave up: attempts used up or error not retryable.",
	}, []string{"name"})
	retryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retry_duration_seconds",
		Help:    "Wall time inside retry.Do, waits included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. Each failed attempt is recorded as a
// "retry.attempt" event on the span in ctx.
func Do(ctx context.Context, fn func() error, p Policy) error {
	p = p.withDefaults()
	start := time.Now()
	defer func() { retryLatency.WithLabelValues(p.Name).Observe(time.Since(start).Seconds()) }()

	span := trace.SpanFromContext(ctx)
	var err error
	for i := 0; i < p.Attempts; i++ {
		err = fn()
		retryAttempts.WithLabelValues(p.Name).Inc()
		if err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}

		retryable := p.Retryable(err)
		last := !retryable || i == p.Attempts-1
		var wait time.Duration
		if !last {
			wait = p.Backoff.Next(i)
		}
		if span.IsRecording() {
			span.AddEvent("retry.attempt", trace.WithAttributes(
				attribute.String("retry.policy", p.Name),
				attribute.Int("retry.attempt", i+1),
				attribute.Int("retry.max_attempts", p.Attempts),
				attribute.Bool("retry.retryable", retryable),
				attribute.String("retry.error", err.Error()),
				attribute.Int64("retry.backoff_ms", wait.Milliseconds()),
			))
		}

		if last {
			retryExhausted.WithLabelValues(p.Name).Inc()
			if span.IsRecording() {
				span.AddEvent("retry.exhausted", trace.WithAttributes(
					attribute.String("retry.policy", p.Name),
					attribute.Int("retry.attempts", i+1),
				))
			}
			if p.OnExhaust != nil {
				p.OnExhaust(err)
			}
			return err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
