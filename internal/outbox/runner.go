package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/outbox"
	"github.com/NordCoder/Sitewatch/internal/obs"
)

var (
	outboxPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_picked_total", Help: "Messages picked into processing.",
	})
	outboxOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_ok_total", Help: "Messages processed successfully.",
	})
	outboxErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_err_total", Help: "Handler errors.",
	})
	outboxTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	outboxBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size", Help: "Size of last picked batch.",
	})
)

type Config struct {
	Workers       int
	BatchSize     int
	Wait          time.Duration
	InProgressTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Wait <= 0 {
		c.Wait = time.Second
	}
	if c.InProgressTTL <= 0 {
		c.InProgressTTL = time.Minute
	}
	return c
}

// Runner relays committed outbox rows to their publishers. Rows stuck
// IN_PROGRESS longer than InProgressTTL are picked again, so delivery is
// at-least-once.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	cfg      Config
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, cfg Config) *Runner {
	return &Runner{
		log:      log.With(zap.String("component", "outbox")),
		repo:     repo,
		dispatch: dispatch,
		cfg:      cfg.withDefaults(),
	}
}

// Run blocks until ctx is done and every worker has returned.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (r *Runner) worker(ctx context.Context) {
	r.log.Info("outbox worker started", zap.Duration("wait", r.cfg.Wait))

	ticker := time.NewTicker(r.cfg.Wait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox worker stop")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick picks one batch, dispatches it and marks the delivered rows. It
// returns how many rows were delivered.
func (r *Runner) Tick(ctx context.Context) int {
	t0 := time.Now()
	defer func() { outboxTickDur.Observe(time.Since(t0).Seconds()) }()

	tr := otel.Tracer("outbox.runner")
	ctx, span := tr.Start(ctx, "outbox.tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.limit", r.cfg.BatchSize),
		attribute.String("in_progress_ttl", r.cfg.InProgressTTL.String()),
	)

	messages, err := r.repo.PickBatch(ctx, r.cfg.BatchSize, r.cfg.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		outboxErr.Inc()
		obs.WithTrace(ctx, r.log).Error("outbox pick error", zap.Error(err))
		return 0
	}
	outboxPicked.Add(float64(len(messages)))
	outboxBatchSize.Set(float64(len(messages)))
	if len(messages) == 0 {
		return 0
	}

	okKeys := make([]string, 0, len(messages))
	for _, m := range messages {
		if r.deliver(ctx, tr, m) {
			okKeys = append(okKeys, m.IdempotencyKey)
		}
	}
	if len(okKeys) == 0 {
		return 0
	}

	if err := r.repo.MarkSuccess(ctx, okKeys); err != nil {
		span.RecordError(err)
		outboxErr.Inc()
		obs.WithTrace(ctx, r.log).Error("mark success error", zap.Error(err))
		return 0
	}
	return len(okKeys)
}

func (r *Runner) deliver(ctx context.Context, tr trace.Tracer, m outbox.Message) bool {
	// resume the trace of the transaction that enqueued the row
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})
	msgCtx, span := tr.Start(parent, "outbox.dispatch",
		trace.WithAttributes(
			attribute.String("outbox.key", m.IdempotencyKey),
			attribute.String("outbox.kind", m.Kind.String()),
		),
	)
	defer span.End()
	log := obs.WithTrace(msgCtx, r.log).With(zap.String("key", m.IdempotencyKey), zap.Stringer("kind", m.Kind))

	handler, err := r.dispatch(m.Kind)
	if err != nil {
		span.RecordError(err)
		outboxErr.Inc()
		log.Error("no handler for kind", zap.Error(err))
		return false
	}
	if err := handler(msgCtx, m.Data); err != nil {
		span.RecordError(err)
		outboxErr.Inc()
		log.Error("handler error", zap.Error(err))
		return false
	}
	outboxOk.Inc()
	return true
}
