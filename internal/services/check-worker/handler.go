package check_worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkworker_checks_total", Help: "Checks executed by type and result status.",
	}, []string{"check_type", "status"})
	checksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkworker_checks_skipped_total", Help: "Check requests dropped before probing.",
	}, []string{"reason"})
	checkLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkworker_check_duration_seconds",
		Help:    "Wall time of one check, uptime and TLS included.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"check_type"})
)

type ResultRecorder interface {
	Record(ctx context.Context, m *monitor.Monitor, req check.Request, typ check.Type, out Outcome, started, completed time.Time) (*result.Result, error)
}

type SummaryRefresher interface {
	Refresh(ctx context.Context, monitorID int64, t time.Time) error
}

type Handler struct {
	Log       *zap.Logger
	Monitors  monitor.Repo
	Checker   Checker
	Recorder  ResultRecorder
	Summaries SummaryRefresher
	Clock     notification.Clock
}

// HandleCheck runs one requested check. Requests for unknown, disabled or
// mismatched monitors are dropped without error; only infrastructure
// failures are returned.
func (h *Handler) HandleCheck(ctx context.Context, req check.Request) error {
	log := obs.WithTrace(ctx, h.Log).With(
		zap.Int64("monitor_id", req.MonitorID),
		zap.String("check_type", string(req.Type)),
		zap.String("trigger", string(req.Trigger)),
	)
	if req.MonitorID <= 0 {
		checksSkipped.WithLabelValues("invalid").Inc()
		log.Warn("invalid check request")
		return nil
	}

	m, err := h.Monitors.GetByID(ctx, req.MonitorID)
	if errors.Is(err, postgres.ErrNotFound) {
		checksSkipped.WithLabelValues("not_found").Inc()
		log.Info("monitor not found; skip")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get monitor: %w", err)
	}
	if !m.Active() {
		checksSkipped.WithLabelValues("disabled").Inc()
		log.Info("monitor disabled; skip")
		return nil
	}
	typ, ok := m.Effective(req.Type)
	if !ok {
		checksSkipped.WithLabelValues("not_enabled").Inc()
		log.Info("requested check types not enabled for monitor; skip")
		return nil
	}

	started := h.Clock.Now()
	out := h.Checker.Check(ctx, TargetFor(m, typ))
	completed := h.Clock.Now()
	checkLatency.WithLabelValues(string(typ)).Observe(completed.Sub(started).Seconds())

	res, err := h.Recorder.Record(ctx, m, req, typ, out, started, completed)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	checksTotal.WithLabelValues(string(typ), string(res.Status)).Inc()
	log.Info("check recorded",
		zap.String("result_id", res.ID.String()),
		zap.String("status", string(res.Status)),
		zap.String("uptime_status", res.UptimeStatus.String),
		zap.String("ssl_status", res.SSLStatus.String),
		zap.Int64("duration_ms", res.DurationMs),
	)

	// windows select on started_at, so refresh the window the check began in;
	// the scheduled aggregation catches up if this fails
	if h.Summaries != nil {
		if err := h.Summaries.Refresh(ctx, m.ID, res.StartedAt); err != nil {
			log.Warn("summary refresh", zap.Error(err))
		}
	}
	return nil
}
