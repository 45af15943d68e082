package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headerCarrier exposes kafka message headers to the otel propagator. Set
// replaces an existing key so a re-published message never carries two
// traceparent headers.
type headerCarrier struct{ hs *[]kafka.Header }

func (c headerCarrier) Get(k string) string {
	for _, h := range *c.hs {
		if h.Key == k {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(k, v string) {
	for i, h := range *c.hs {
		if h.Key == k {
			(*c.hs)[i].Value = []byte(v)
			return
		}
	}
	*c.hs = append(*c.hs, kafka.Header{Key: k, Value: []byte(v)})
}

func (c headerCarrier) Keys() []string {
	ks := make([]string, 0, len(*c.hs))
	for _, h := range *c.hs {
		ks = append(ks, h.Key)
	}
	return ks
}

// injectTrace writes the trace context of ctx into msg's headers.
func injectTrace(ctx context.Context, msg *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{hs: &msg.Headers})
}

// extractTrace returns ctx joined to the trace the producer recorded in msg.
func extractTrace(ctx context.Context, msg kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{hs: &msg.Headers})
}
