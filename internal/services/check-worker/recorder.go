package check_worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/domain/outbox"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

// Recorder persists one outcome: the result row, the monitor's last known
// statuses and the CheckCompleted outbox message commit together.
type Recorder struct {
	Results    result.Repo
	Monitors   monitor.Repo
	Outbox     outbox.Repository
	Transactor postgres.Transactor
}

func (r *Recorder) Record(ctx context.Context, m *monitor.Monitor, req check.Request, typ check.Type, out Outcome, started, completed time.Time) (*result.Result, error) {
	res := BuildResult(m.ID, typ, req.Trigger, out, started, completed)

	payload, err := json.Marshal(events.CompletedFrom(res))
	if err != nil {
		return nil, fmt.Errorf("marshal check completed: %w", err)
	}

	err = r.Transactor.WithTx(ctx, func(txCtx context.Context) error {
		if err := r.Results.Insert(txCtx, res); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		// a monitor deleted meanwhile leaves an orphan result, which is fine
		if err := r.Monitors.UpdateStatus(txCtx, m.ID, res.Uptime(), res.SSL(), completed); err != nil {
			return fmt.Errorf("update monitor status: %w", err)
		}
		if err := r.Outbox.Enqueue(txCtx, "check_completed:"+res.ID.String(), outbox.KindCheckCompleted, payload); err != nil {
			return fmt.Errorf("outbox enqueue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BuildResult maps an outcome onto a result row. Status is error when a
// check could not complete, failed when it completed unhealthy.
func BuildResult(monitorID int64, typ check.Type, trigger check.Trigger, out Outcome, started, completed time.Time) *result.Result {
	res := &result.Result{
		ID:          uuid.New(),
		MonitorID:   monitorID,
		CheckType:   typ,
		TriggerType: trigger,
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		DurationMs:  result.DurationMs(started, completed),
		Status:      result.StatusSuccess,
		Warnings:    out.Warnings,
	}
	var errs []string

	if up := out.Uptime; up != nil {
		res.UptimeStatus = null.StringFrom(string(up.Status))
		if up.StatusCode > 0 {
			res.HTTPStatusCode = null.IntFrom(int64(up.StatusCode))
			res.FinalURL = null.StringFrom(up.FinalURL)
			res.RedirectCount = null.IntFrom(int64(up.RedirectCount))
		}
		res.ResponseTimeMs = null.IntFrom(up.ResponseTime.Milliseconds())
		switch {
		case up.Status.Reachable():
		case up.StatusCode == 0:
			res.Status = result.StatusError
		default:
			res.Status = worse(res.Status, result.StatusFailed)
		}
		if up.Error != "" {
			errs = append(errs, up.Error)
		}
	}

	if s := out.SSL; s != nil {
		res.SSLStatus = null.StringFrom(string(s.Status))
		res.SSLIssuer = null.NewString(s.Issuer, s.Issuer != "")
		res.SSLSubject = null.NewString(s.Subject, s.Subject != "")
		if !s.ExpiresAt.IsZero() {
			res.SSLExpiresAt = null.TimeFrom(s.ExpiresAt)
			res.DaysUntilExpiration = null.IntFrom(int64(s.DaysUntilExpiration))
		}
		switch {
		case s.Status.Trusted():
		case s.Status == check.SSLError:
			res.Status = result.StatusError
		default:
			res.Status = worse(res.Status, result.StatusFailed)
		}
		if s.Error != "" {
			errs = append(errs, s.Error)
		}
	}

	if len(errs) > 0 {
		res.ErrorMessage = null.StringFrom(strings.Join(errs, "; "))
	}
	return res
}

func worse(a, b result.Status) result.Status {
	if a == result.StatusError || b == result.StatusError {
		return result.StatusError
	}
	if a == result.StatusFailed || b == result.StatusFailed {
		return result.StatusFailed
	}
	return result.StatusSuccess
}
