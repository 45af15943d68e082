package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/NordCoder/Sitewatch/internal/domain/kafka"
	"github.com/NordCoder/Sitewatch/internal/domain/outbox"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers (publish, http, etc.)",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// Publishers are the sinks outbox rows are relayed to. A process only sets
// the ones for kinds it enqueues.
type Publishers struct {
	Checks kafka.CheckEvents
	Alerts kafka.AlertEvents
}

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle "+kind)

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		obs.EndSpan(span, err)
		return err
	}
}

func decode[T any](publish func(context.Context, T) error) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal %T payload: %w", v, err)
		}
		return publish(ctx, v)
	}
}

func MakeGlobalOutboxHandler(pub Publishers, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		var base outbox.KindHandler
		switch {
		case kind == outbox.KindCheckCompleted && pub.Checks != nil:
			base = decode(pub.Checks.PublishCheckCompleted)
		case kind == outbox.KindAlertRaised && pub.Alerts != nil:
			base = decode(pub.Alerts.PublishAlertRaised)
		case kind == outbox.KindAlertResolved && pub.Alerts != nil:
			base = decode(pub.Alerts.PublishAlertResolved)
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
		return instrument(kind.String(), base, pol), nil
	}
}
