package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	kafkax "github.com/NordCoder/Sitewatch/internal/repository/kafka"
)

var notifierErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "notifier_errors_total", Help: "Alert events that exhausted their retries.",
})

type Subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log    *zap.Logger
	Sub    Subscriber
	UC     *Handler
	Policy retry.Policy
}

func (c *Controller) Run(ctx context.Context) error {
	return c.Sub.Consume(ctx, kafkax.JSONHandler(func(ctx context.Context, _ []byte, env events.Envelope) error {
		return c.Handle(ctx, env)
	}))
}

func (c *Controller) Handle(ctx context.Context, env events.Envelope) error {
	var kind notification.Kind
	switch env.Kind {
	case events.KindAlertRaised:
		kind = notification.KindRaised
	case events.KindAlertResolved:
		kind = notification.KindResolved
	default:
		return nil
	}

	var ev events.Alert
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return fmt.Errorf("decode %s: %w", env.Kind, err)
	}

	err := retry.Do(ctx, func() error { return c.UC.HandleAlert(ctx, kind, ev) }, c.Policy)
	if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return err
	}
	notifierErrors.Inc()
	obs.WithTrace(ctx, c.Log).Error("notify failed after retries",
		zap.String("alert_id", ev.AlertID.String()),
		zap.String("alert_type", string(ev.AlertType)),
		zap.Error(err),
	)
	return nil
}
