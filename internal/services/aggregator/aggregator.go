package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/domain/summary"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

var (
	aggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregator_summaries_total", Help: "Summary windows aggregated, by period and outcome.",
	}, []string{"period", "outcome"})
	aggregateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aggregator_duration_seconds",
		Help:    "Time to aggregate every monitor for one period window.",
		Buckets: prometheus.DefBuckets,
	}, []string{"period"})
)

// KeyLocker serializes work on one key until the surrounding transaction ends.
type KeyLocker interface {
	LockKey(ctx context.Context, key string) error
}

type Aggregator struct {
	Log        *zap.Logger
	Results    result.Repo
	Summaries  summary.Repo
	Locker     KeyLocker
	Transactor postgres.Transactor
	// Workers bounds AggregateAll; zero means 4.
	Workers int
	Now     func() time.Time
}

func lockKey(monitorID int64, p summary.Period, start time.Time) string {
	return fmt.Sprintf("summary:%d:%s:%d", monitorID, p, start.Unix())
}

// AggregatePeriod recomputes the window of period p containing t and upserts
// it. An empty window writes nothing. Running it twice gives the same row.
func (a *Aggregator) AggregatePeriod(ctx context.Context, monitorID int64, p summary.Period, t time.Time) error {
	start, end := p.Bounds(t)
	err := a.Transactor.WithTx(ctx, func(txCtx context.Context) error {
		if err := a.Locker.LockKey(txCtx, lockKey(monitorID, p, start)); err != nil {
			return err
		}
		results, err := a.Results.ListWindow(txCtx, monitorID, start, end)
		if err != nil {
			return fmt.Errorf("list results: %w", err)
		}
		if len(results) == 0 {
			aggregations.WithLabelValues(string(p), "empty").Inc()
			return nil
		}
		s := &summary.Summary{
			MonitorID:   monitorID,
			Period:      p,
			PeriodStart: start,
			PeriodEnd:   end,
			Stats:       summary.Compute(results),
			UpdatedAt:   a.now(),
		}
		if err := a.Summaries.Upsert(txCtx, s); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		aggregations.WithLabelValues(string(p), "written").Inc()
		return nil
	})
	if err != nil {
		aggregations.WithLabelValues(string(p), "error").Inc()
		return fmt.Errorf("aggregate %s monitor=%d start=%s: %w", p, monitorID, start.Format(time.RFC3339), err)
	}
	return nil
}

// Refresh re-aggregates the hourly and daily windows containing t; the
// check-worker calls it after each recorded result.
func (a *Aggregator) Refresh(ctx context.Context, monitorID int64, t time.Time) error {
	return errors.Join(
		a.AggregatePeriod(ctx, monitorID, summary.Hourly, t),
		a.AggregatePeriod(ctx, monitorID, summary.Daily, t),
	)
}

// AggregateAll aggregates every monitor with results in the window of p
// containing t. Failures for one monitor do not stop the others.
func (a *Aggregator) AggregateAll(ctx context.Context, p summary.Period, t time.Time) (int, error) {
	began := time.Now()
	defer func() { aggregateDuration.WithLabelValues(string(p)).Observe(time.Since(began).Seconds()) }()

	start, end := p.Bounds(t)
	ids, err := a.Results.MonitorsWithResults(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("list monitors with results: %w", err)
	}

	workers := a.Workers
	if workers <= 0 {
		workers = 4
	}
	sem := semaphore.NewWeighted(int64(workers))
	errs := make([]error, len(ids))
	for i, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}
		go func() {
			defer sem.Release(1)
			errs[i] = a.AggregatePeriod(ctx, id, p, start)
		}()
	}
	_ = sem.Acquire(context.Background(), int64(workers))

	err = errors.Join(errs...)
	a.Log.Info("aggregation done",
		zap.String("period", string(p)),
		zap.Time("period_start", start),
		zap.Int("monitors", len(ids)),
		zap.Bool("errors", err != nil),
	)
	return len(ids), err
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}
