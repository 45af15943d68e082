package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/NordCoder/Sitewatch/internal/config/check-worker"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	"github.com/NordCoder/Sitewatch/internal/outbox"
	"github.com/NordCoder/Sitewatch/internal/repository/kafka"
	pg "github.com/NordCoder/Sitewatch/internal/repository/postgres"
	"github.com/NordCoder/Sitewatch/internal/services/aggregator"
	checkworker "github.com/NordCoder/Sitewatch/internal/services/check-worker"
)

func wire(cfg *config.Config, db *pg.DB, prod *kafka.Producer, cons *kafka.Consumer, l *zap.Logger) (*outbox.Runner, *checkworker.Controller) {
	outboxRepo := pg.NewOutboxRepo(db)
	transactor := pg.NewTransactor(db, l)
	events := kafka.NewCheckEventsKafka(prod)

	dispatch := outbox.MakeGlobalOutboxHandler(outbox.Publishers{Checks: events}, retry.PublishPolicy(l))
	outboxRunner := outbox.NewOutboxRunner(l, outboxRepo, dispatch, cfg.Outbox.AsRunnerConfig())

	monitors := pg.NewMonitorRepo(db)
	results := pg.NewResultRepo(db)

	exec := checkworker.NewExecutor(
		checkworker.NewExecutorConfig(cfg.HTTP, cfg.Alerting),
		checkworker.NewHTTPClient(cfg.HTTP),
	)

	uc := &checkworker.Handler{
		Log:      l,
		Monitors: monitors,
		Checker:  exec,
		Recorder: &checkworker.Recorder{
			Results:    results,
			Monitors:   monitors,
			Outbox:     outboxRepo,
			Transactor: transactor,
		},
		Summaries: &aggregator.Aggregator{
			Log:        l,
			Results:    results,
			Summaries:  pg.NewSummaryRepo(db),
			Locker:     pg.NewLocker(db, l),
			Transactor: transactor,
		},
		Clock: notification.SystemClock{},
	}

	return outboxRunner, &checkworker.Controller{
		Log:     l,
		Sub:     cons,
		UC:      uc,
		Events:  events,
		Policy:  cfg.Worker.Policy("check", l),
		Workers: cfg.Worker.Concurrency,
		Clock:   notification.SystemClock{},
	}
}

func main() {
	cfgPath := pflag.String("config", "config/check-worker.yaml", "path to config file")
	pflag.Parse()

	// init
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting check-worker",
		zap.Any("kafka_in", cfg.In),
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, map[string]obs.HealthCheck{
		"postgres": db.Ping,
		"kafka":    func(ctx context.Context) error { return kafka.Ping(ctx, cfg.In.Brokers) },
	}, l)

	// kafka
	cons := kafka.BootstrapConsumer(root, cfg.In.AsConsumerConfig(l), l).WithLogger(l)
	defer func() { _ = cons.Close() }()
	prod := kafka.BootstrapProducer(root, cfg.Out.Brokers, cfg.Out.Topic, cfg.Out.Partitions, l)
	defer func() { _ = prod.Close() }()

	// wiring
	outboxRunner, ctrl := wire(cfg, db, prod, cons, l)

	// run
	g, ctx := errgroup.WithContext(root)
	g.Go(func() error { return outboxRunner.Run(ctx) })
	g.Go(func() error { return ctrl.Run(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("check-worker stopped", zap.Error(err))
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
