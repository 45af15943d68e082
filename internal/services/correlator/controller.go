package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	kafkax "github.com/NordCoder/Sitewatch/internal/repository/kafka"
)

var (
	correlatorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "correlator_errors_total", Help: "Events that exhausted their retries.",
	})
	checksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "correlator_checks_failed_total", Help: "CheckFailed events observed.",
	})
)

type Subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log    *zap.Logger
	Sub    Subscriber
	UC     *Correlator
	Policy retry.Policy
}

func (c *Controller) Run(ctx context.Context) error {
	return c.Sub.Consume(ctx, kafkax.JSONHandler(func(ctx context.Context, _ []byte, env events.Envelope) error {
		return c.Handle(ctx, env)
	}))
}

func (c *Controller) Handle(ctx context.Context, env events.Envelope) error {
	switch env.Kind {
	case events.KindCheckCompleted:
		var ev events.CheckCompleted
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		err := retry.Do(ctx, func() error { return c.UC.HandleCheckCompleted(ctx, ev) }, c.Policy)
		if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return err
		}
		correlatorErrors.Inc()
		obs.WithTrace(ctx, c.Log).Error("correlate failed after retries",
			zap.Int64("monitor_id", ev.MonitorID),
			zap.String("result_id", ev.ResultID.String()),
			zap.Error(err),
		)
		return nil

	case events.KindCheckFailed:
		var ev events.CheckFailed
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		checksFailed.Inc()
		obs.WithTrace(ctx, c.Log).Warn("check failed upstream",
			zap.Int64("monitor_id", ev.MonitorID),
			zap.String("check_type", string(ev.CheckType)),
			zap.String("exception", ev.Exception),
		)
		return nil

	default:
		c.Log.Debug("ignoring event", zap.String("kind", string(env.Kind)))
		return nil
	}
}
