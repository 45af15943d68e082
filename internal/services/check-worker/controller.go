package check_worker

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	kafkax "github.com/NordCoder/Sitewatch/internal/repository/kafka"
)

var checkFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "checkworker_errors_total", Help: "Check requests that exhausted their retries.",
})

type Subscriber interface {
	ConsumeParallel(ctx context.Context, h kafkax.Handler, workers int) error
}

type FailurePublisher interface {
	PublishCheckFailed(ctx context.Context, ev events.CheckFailed) error
}

type Controller struct {
	Log     *zap.Logger
	Sub     Subscriber
	UC      *Handler
	Events  FailurePublisher
	Policy  retry.Policy
	Workers int
	Clock   notification.Clock
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(func(ctx context.Context, _ []byte, req check.Request) error {
		return c.Handle(ctx, req)
	})
	return c.Sub.ConsumeParallel(ctx, handler, c.Workers)
}

// Handle retries the check and, once retries run out, reports CheckFailed
// and lets the message be committed.
func (c *Controller) Handle(ctx context.Context, req check.Request) error {
	err := retry.Do(ctx, func() error { return c.UC.HandleCheck(ctx, req) }, c.Policy)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return err
	}

	checkFailures.Inc()
	obs.WithTrace(ctx, c.Log).Error("check failed after retries",
		zap.Int64("monitor_id", req.MonitorID),
		zap.String("check_type", string(req.Type)),
		zap.Error(err),
	)
	ev := events.CheckFailed{
		MonitorID:   req.MonitorID,
		CheckType:   req.Type,
		TriggerType: req.Trigger,
		Exception:   err.Error(),
		FailedAt:    c.Clock.Now(),
	}
	if perr := c.Events.PublishCheckFailed(ctx, ev); perr != nil {
		obs.WithTrace(ctx, c.Log).Error("publish check failed", zap.Error(perr))
	}
	return nil
}
