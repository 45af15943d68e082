package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	config "github.com/NordCoder/Sitewatch/internal/config/scheduler"
	"github.com/NordCoder/Sitewatch/internal/domain/audit"
	"github.com/NordCoder/Sitewatch/internal/domain/summary"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

var (
	mFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_fetched_total", Help: "Monitors picked up for dispatch",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_messages_sent_total", Help: "Check requests published to Kafka",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_errors_total", Help: "Errors in scheduler jobs",
	})
	mRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total", Help: "Job runs by outcome",
	}, []string{"job", "outcome"})
	mJobDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "scheduler_job_duration_seconds", Help: "Job run duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// JobLocker runs fn only if no other scheduler instance holds name.
type JobLocker interface {
	TryRun(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

type Runner struct {
	Log    *zap.Logger
	UC     *Usecase
	Sched  config.SchedCfg
	Specs  config.Jobs
	Locker JobLocker
	Beat   *obs.Heartbeat
}

func New(log *zap.Logger, uc *Usecase, cfg *config.Config, locker JobLocker) *Runner {
	return &Runner{
		Log:    log.With(zap.String("component", "scheduler")),
		UC:     uc,
		Sched:  cfg.Sched,
		Specs:  cfg.Jobs,
		Locker: locker,
		Beat:   &obs.Heartbeat{},
	}
}

// Jobs lists the enabled jobs; a job with an empty spec is left out.
func (r *Runner) Jobs() []Job {
	all := []Job{
		{Name: "uptime-dispatch", Spec: r.Specs.UptimeDispatch, Run: r.dispatch(func(ctx context.Context) (Batch, error) {
			return r.UC.DispatchUptime(ctx, r.Sched.BatchLimit)
		})},
		{Name: "ssl-dispatch", Spec: r.Specs.SSLDispatch, Run: r.dispatch(r.UC.DispatchSSL)},
		{Name: "aggregate-hourly", Spec: r.Specs.AggregateHourly, Run: r.aggregate(summary.Hourly)},
		{Name: "aggregate-daily", Spec: r.Specs.AggregateDaily, Run: r.aggregate(summary.Daily)},
		{Name: "aggregate-weekly", Spec: r.Specs.AggregateWeekly, Run: r.aggregate(summary.Weekly)},
		{Name: "aggregate-monthly", Spec: r.Specs.AggregateMonthly, Run: r.aggregate(summary.Monthly)},
		{Name: "prune-results", Spec: r.Specs.PruneResults, Run: r.prune},
	}
	out := all[:0]
	for _, j := range all {
		if j.Spec != "" {
			out = append(out, j)
		}
	}
	return out
}

func (r *Runner) dispatch(fn func(ctx context.Context) (Batch, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		b, err := fn(ctx)
		mFetched.Add(float64(b.Fetched))
		mSent.Add(float64(b.Sent))
		if b.Errors > 0 {
			mErr.Add(float64(b.Errors))
		}
		if b.Fetched > 0 {
			r.Log.Debug("scheduled batch", zap.Int("fetched", b.Fetched), zap.Int("sent", b.Sent), zap.Int("errors", b.Errors))
		}
		return err
	}
}

func (r *Runner) aggregate(p summary.Period) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := r.UC.Aggregate(ctx, p)
		r.Log.Info("aggregated", zap.String("period", string(p)), zap.Int("monitors", n))
		return err
	}
}

func (r *Runner) prune(ctx context.Context) error {
	n, err := r.UC.Prune(ctx, PruneRequest{
		Retention: r.Sched.Retention,
		Actor:     "scheduler",
		Source:    audit.SourceScheduler,
	})
	if err == nil {
		r.Log.Info("pruned results", zap.Int64("deleted", n), zap.Duration("retention", r.Sched.Retention))
	}
	return err
}

// RunJob executes one job under its cluster-wide lock and records the outcome.
func (r *Runner) RunJob(ctx context.Context, j Job) {
	ctx, span := otel.Tracer("scheduler.runner").Start(ctx, "scheduler.job "+j.Name,
		trace.WithAttributes(attribute.String("job", j.Name)))
	log := obs.WithTrace(ctx, r.Log).With(zap.String("job", j.Name))

	start := time.Now()
	err := r.Locker.TryRun(ctx, "scheduler:"+j.Name, j.Run)
	mJobDur.WithLabelValues(j.Name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		mRuns.WithLabelValues(j.Name, "ok").Inc()
		r.Beat.Beat(time.Now())
		obs.EndSpan(span, nil)
	case errors.Is(err, postgres.ErrLockHeld):
		mRuns.WithLabelValues(j.Name, "skipped").Inc()
		r.Beat.Beat(time.Now())
		span.SetAttributes(attribute.Bool("skipped", true))
		obs.EndSpan(span, nil)
		log.Debug("job held by another instance")
	default:
		mRuns.WithLabelValues(j.Name, "error").Inc()
		mErr.Inc()
		obs.EndSpan(span, err)
		log.Warn("job failed", zap.Error(err))
	}
}

// Run schedules every job in UTC and blocks until ctx is done. Running jobs
// are waited for before returning.
func (r *Runner) Run(ctx context.Context) error {
	cl := cronLogger{r.Log.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, j := range r.Jobs() {
		if _, err := c.AddFunc(j.Spec, func() { r.RunJob(ctx, j) }); err != nil {
			return fmt.Errorf("job %s: bad spec %q: %w", j.Name, j.Spec, err)
		}
		r.Log.Info("job scheduled", zap.String("job", j.Name), zap.String("spec", j.Spec))
	}

	r.Beat.Beat(time.Now())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}
