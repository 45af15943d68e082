package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/audit"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/domain/summary"
	"github.com/NordCoder/Sitewatch/internal/obs"
)

type PeriodAggregator interface {
	AggregateAll(ctx context.Context, p summary.Period, t time.Time) (int, error)
}

// Usecase holds the operations shared by the cron jobs and monctl.
type Usecase struct {
	Log        *zap.Logger
	Monitors   monitor.Repo
	Results    result.Repo
	Requests   check.Requests
	Audit      audit.Repo
	Aggregator PeriodAggregator
	Now        func() time.Time
}

// Batch counts one dispatch pass.
type Batch struct {
	Fetched int
	Sent    int
	Errors  int
}

func (u *Usecase) now() time.Time {
	if u.Now != nil {
		return u.Now().UTC()
	}
	return time.Now().UTC()
}

// DispatchUptime claims due uptime monitors and publishes one scheduled
// request per monitor. Publish failures are counted, not returned; the
// monitor comes due again on its next interval.
func (u *Usecase) DispatchUptime(ctx context.Context, limit int) (Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	tr := otel.Tracer("scheduler.uc")
	ctx, span := tr.Start(ctx, "scheduler.dispatch_uptime",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	due, err := u.Monitors.FetchDue(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return Batch{Errors: 1}, fmt.Errorf("fetch due: %w", err)
	}
	b := u.publish(ctx, due, check.TypeUptime, check.TriggerScheduled)
	span.SetAttributes(
		attribute.Int("batch.fetched", b.Fetched),
		attribute.Int("batch.sent", b.Sent),
		attribute.Int("batch.errors", b.Errors),
	)
	return b, nil
}

// DispatchSSL requests a certificate check for every certificate-enabled monitor.
func (u *Usecase) DispatchSSL(ctx context.Context) (Batch, error) {
	ctx, span := otel.Tracer("scheduler.uc").Start(ctx, "scheduler.dispatch_ssl")
	defer span.End()

	list, err := u.Monitors.ListCertificateEnabled(ctx)
	if err != nil {
		span.RecordError(err)
		return Batch{Errors: 1}, fmt.Errorf("list certificate monitors: %w", err)
	}
	b := u.publish(ctx, list, check.TypeSSL, check.TriggerScheduled)
	span.SetAttributes(attribute.Int("batch.sent", b.Sent), attribute.Int("batch.errors", b.Errors))
	return b, nil
}

func (u *Usecase) publish(ctx context.Context, list []*monitor.Monitor, t check.Type, trig check.Trigger) Batch {
	tr := otel.Tracer("scheduler.uc")
	b := Batch{Fetched: len(list)}
	at := u.now()
	for _, m := range list {
		_, sp := tr.Start(ctx, "scheduler.publish",
			trace.WithAttributes(
				attribute.Int64("monitor.id", m.ID),
				attribute.String("monitor.url", m.URL),
				attribute.String("check.type", string(t)),
			),
		)
		err := u.Requests.PublishCheckRequested(ctx, check.Request{
			MonitorID: m.ID, Type: t, Trigger: trig, RequestedAt: at,
		})
		if err != nil {
			b.Errors++
			sp.RecordError(err)
			sp.SetAttributes(attribute.String("publish.status", "error"))
			sp.End()
			obs.WithTrace(ctx, u.Log).Warn("publish check request",
				zap.Int64("monitor_id", m.ID), zap.Error(err))
			continue
		}
		b.Sent++
		sp.SetAttributes(attribute.String("publish.status", "ok"))
		sp.End()
	}
	return b
}

// Aggregate rolls up the period window that ended most recently.
func (u *Usecase) Aggregate(ctx context.Context, p summary.Period) (int, error) {
	return u.Aggregator.AggregateAll(ctx, p, p.Previous(u.now()))
}

type PruneRequest struct {
	Retention time.Duration
	DryRun    bool
	Actor     string
	Source    audit.Source
}

// Prune deletes results started before now-retention. A dry run only counts them.
func (u *Usecase) Prune(ctx context.Context, req PruneRequest) (int64, error) {
	if req.Retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", req.Retention)
	}
	cutoff := u.now().Add(-req.Retention)
	if req.DryRun {
		n, err := u.Results.CountOlderThan(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("count results: %w", err)
		}
		return n, nil
	}

	n, err := u.Results.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	u.audit(ctx, &audit.Event{
		Type:   audit.TypeResultsPruned,
		Actor:  req.Actor,
		Source: req.Source,
		Payload: map[string]any{
			"cutoff":  cutoff.Format(time.RFC3339),
			"deleted": n,
		},
	})
	return n, nil
}

type ForceRequest struct {
	// MonitorID is ignored when All is set.
	MonitorID int64
	All       bool
	Type      check.Type
	Actor     string
}

var ErrNothingToCheck = errors.New("monitor has none of the requested checks enabled")

// ForceCheck publishes manual requests, narrowing the requested type to the
// check types each monitor has enabled. Monitors with nothing left are skipped.
func (u *Usecase) ForceCheck(ctx context.Context, req ForceRequest) (Batch, error) {
	if req.Type == "" {
		req.Type = check.TypeBoth
	}

	var targets []*monitor.Monitor
	if req.All {
		list, err := u.Monitors.List(ctx, false)
		if err != nil {
			return Batch{}, fmt.Errorf("list monitors: %w", err)
		}
		targets = list
	} else {
		m, err := u.Monitors.GetByID(ctx, req.MonitorID)
		if err != nil {
			return Batch{}, fmt.Errorf("get monitor %d: %w", req.MonitorID, err)
		}
		if !m.Active() {
			return Batch{}, fmt.Errorf("monitor %d is disabled", m.ID)
		}
		if _, ok := m.Effective(req.Type); !ok {
			return Batch{}, ErrNothingToCheck
		}
		targets = []*monitor.Monitor{m}
	}

	var b Batch
	for _, m := range targets {
		t, ok := m.Effective(req.Type)
		if !ok {
			continue
		}
		sent := u.publish(ctx, []*monitor.Monitor{m}, t, check.TriggerManual)
		b.Fetched++
		b.Sent += sent.Sent
		b.Errors += sent.Errors
		if sent.Sent == 1 {
			u.audit(ctx, &audit.Event{
				MonitorID: m.ID,
				Type:      audit.TypeCheckForced,
				Actor:     req.Actor,
				Source:    audit.SourceCLI,
				Payload:   map[string]any{"check_type": string(t)},
			})
		}
	}
	if b.Errors > 0 {
		return b, fmt.Errorf("%d of %d check requests failed to publish", b.Errors, b.Fetched)
	}
	return b, nil
}

// BackfillSSL requests an SSL check for every certificate monitor without an
// SSL result since the given time.
func (u *Usecase) BackfillSSL(ctx context.Context, since time.Time, actor string) (Batch, error) {
	list, err := u.Monitors.ListMissingSSLResults(ctx, since)
	if err != nil {
		return Batch{}, fmt.Errorf("list monitors missing ssl: %w", err)
	}
	b := u.publish(ctx, list, check.TypeSSL, check.TriggerManual)
	u.audit(ctx, &audit.Event{
		Type:   audit.TypeSSLBackfillRequested,
		Actor:  actor,
		Source: audit.SourceCLI,
		Payload: map[string]any{
			"since":     since.UTC().Format(time.RFC3339),
			"requested": b.Sent,
		},
	})
	if b.Errors > 0 {
		return b, fmt.Errorf("%d of %d check requests failed to publish", b.Errors, b.Fetched)
	}
	return b, nil
}

// audit failures are logged only; the audited action already happened.
func (u *Usecase) audit(ctx context.Context, e *audit.Event) {
	if u.Audit == nil {
		return
	}
	e.ID = uuid.New()
	if e.Actor == "" {
		e.Actor = "system"
	}
	if err := u.Audit.Append(ctx, e); err != nil {
		obs.WithTrace(ctx, u.Log).Warn("append audit event",
			zap.String("event_type", string(e.Type)), zap.Error(err))
	}
}
