package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/domain/outbox"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

var (
	alertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "correlator_alerts_raised_total", Help: "Alerts raised by type and severity.",
	}, []string{"alert_type", "severity"})
	alertsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "correlator_alerts_resolved_total", Help: "Alerts resolved by type.",
	}, []string{"alert_type"})
	eventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "correlator_events_skipped_total", Help: "CheckCompleted events ignored.",
	}, []string{"reason"})
)

type KeyLocker interface {
	LockKey(ctx context.Context, key string) error
}

// Correlator keeps alert state in line with stored results. It re-reads
// the result table instead of trusting event payloads, so replays are safe.
type Correlator struct {
	Log        *zap.Logger
	Results    result.Repo
	Monitors   monitor.Repo
	Alerts     alert.Repo
	Outbox     outbox.Repository
	Locker     KeyLocker
	Transactor postgres.Transactor
	Policy     alert.Policy
	Clock      notification.Clock
}

func (c *Correlator) HandleCheckCompleted(ctx context.Context, ev events.CheckCompleted) error {
	log := obs.WithTrace(ctx, c.Log).With(
		zap.Int64("monitor_id", ev.MonitorID),
		zap.String("result_id", ev.ResultID.String()),
	)

	res, err := c.Results.GetByID(ctx, ev.ResultID)
	if errors.Is(err, postgres.ErrNotFound) {
		// the next check re-evaluates
		eventsSkipped.WithLabelValues("result_not_visible").Inc()
		log.Info("result not visible yet; skip")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get result: %w", err)
	}

	m, err := c.Monitors.GetByID(ctx, res.MonitorID)
	if errors.Is(err, postgres.ErrNotFound) {
		eventsSkipped.WithLabelValues("monitor_gone").Inc()
		log.Info("monitor gone; skip")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get monitor: %w", err)
	}
	if !m.Active() {
		eventsSkipped.WithLabelValues("monitor_disabled").Inc()
		return nil
	}

	pol := c.Policy.WithDefaults()
	host := hostOf(m.URL)

	decisions := SSLDecisions(pol, host, res)
	if res.HasUptime() {
		window := max(pol.ConsecutiveFailures, pol.SlowStreak)
		recent, err := c.Results.RecentUptime(ctx, m.ID, window)
		if err != nil {
			return fmt.Errorf("recent uptime results: %w", err)
		}
		decisions = append(decisions, UptimeDecisions(pol, host, recent)...)
	}

	var errs []error
	for _, d := range decisions {
		if err := c.apply(ctx, m, d, res.CompletedAt); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", d.Action, d.Type, err))
		}
	}
	return errors.Join(errs...)
}

func alertKey(monitorID int64, t alert.Type) string {
	return fmt.Sprintf("alert:%d:%s", monitorID, t)
}

func (c *Correlator) apply(ctx context.Context, m *monitor.Monitor, d Decision, at time.Time) error {
	if at.IsZero() {
		at = c.Clock.Now()
	}
	return c.Transactor.WithTx(ctx, func(txCtx context.Context) error {
		if err := c.Locker.LockKey(txCtx, alertKey(m.ID, d.Type)); err != nil {
			return err
		}
		open, err := c.Alerts.GetUnresolved(txCtx, m.ID, d.Type)
		if err != nil && !errors.Is(err, postgres.ErrNotFound) {
			return fmt.Errorf("get unresolved: %w", err)
		}
		if d.Action == Raise {
			if open != nil {
				return nil
			}
			return c.raise(txCtx, m, d, at)
		}
		if open == nil {
			return nil
		}
		return c.resolve(txCtx, m, open, at)
	})
}

func (c *Correlator) raise(ctx context.Context, m *monitor.Monitor, d Decision, at time.Time) error {
	a := &alert.Alert{
		ID:           uuid.New(),
		MonitorID:    m.ID,
		Type:         d.Type,
		Severity:     d.Severity,
		Title:        d.Title,
		Message:      d.Message,
		TriggerValue: d.Trigger,
		DetectedAt:   at.UTC(),
	}
	err := c.Alerts.Create(ctx, a)
	if errors.Is(err, postgres.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	ev := alertEvent(a, m, d.Days)
	if err := c.enqueue(ctx, "alert_raised:"+a.ID.String(), outbox.KindAlertRaised, ev); err != nil {
		return err
	}
	alertsRaised.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	obs.WithTrace(ctx, c.Log).Info("alert raised",
		zap.Int64("monitor_id", m.ID),
		zap.String("alert_type", string(a.Type)),
		zap.String("severity", string(a.Severity)),
		zap.String("title", a.Title),
	)
	return nil
}

func (c *Correlator) resolve(ctx context.Context, m *monitor.Monitor, a *alert.Alert, at time.Time) error {
	at = at.UTC()
	err := c.Alerts.Resolve(ctx, a.ID, at)
	if errors.Is(err, postgres.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a.ResolvedAt = &at

	ev := alertEvent(a, m, nil)
	if err := c.enqueue(ctx, "alert_resolved:"+a.ID.String(), outbox.KindAlertResolved, ev); err != nil {
		return err
	}
	alertsResolved.WithLabelValues(string(a.Type)).Inc()
	obs.WithTrace(ctx, c.Log).Info("alert resolved",
		zap.Int64("monitor_id", m.ID),
		zap.String("alert_type", string(a.Type)),
		zap.String("alert_id", a.ID.String()),
	)
	return nil
}

func (c *Correlator) enqueue(ctx context.Context, key string, kind outbox.Kind, ev events.Alert) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if err := c.Outbox.Enqueue(ctx, key, kind, b); err != nil {
		return fmt.Errorf("outbox enqueue: %w", err)
	}
	return nil
}

func alertEvent(a *alert.Alert, m *monitor.Monitor, days *int) events.Alert {
	return events.Alert{
		AlertID:             a.ID,
		MonitorID:           m.ID,
		MonitorURL:          m.URL,
		AlertType:           a.Type,
		Severity:            a.Severity,
		Title:               a.Title,
		Message:             a.Message,
		DaysUntilExpiration: days,
		DetectedAt:          a.DetectedAt,
		ResolvedAt:          a.ResolvedAt,
	}
}

// Acknowledge marks an alert as seen by an operator. It does not resolve it.
func (c *Correlator) Acknowledge(ctx context.Context, id uuid.UUID) error {
	if err := c.Alerts.Acknowledge(ctx, id, c.Clock.Now()); err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	return nil
}
