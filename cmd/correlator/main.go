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

	config "github.com/NordCoder/Sitewatch/internal/config/correlator"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	"github.com/NordCoder/Sitewatch/internal/outbox"
	"github.com/NordCoder/Sitewatch/internal/repository/kafka"
	pg "github.com/NordCoder/Sitewatch/internal/repository/postgres"
	"github.com/NordCoder/Sitewatch/internal/services/correlator"
)

func wire(cfg *config.Config, db *pg.DB, prod *kafka.Producer, cons *kafka.Consumer, l *zap.Logger) (*outbox.Runner, *correlator.Controller) {
	outboxRepo := pg.NewOutboxRepo(db)

	dispatch := outbox.MakeGlobalOutboxHandler(
		outbox.Publishers{Alerts: kafka.NewAlertEventsKafka(prod)},
		retry.PublishPolicy(l),
	)
	outboxRunner := outbox.NewOutboxRunner(l, outboxRepo, dispatch, cfg.Outbox.AsRunnerConfig())

	uc := &correlator.Correlator{
		Log:        l,
		Results:    pg.NewResultRepo(db),
		Monitors:   pg.NewMonitorRepo(db),
		Alerts:     pg.NewAlertRepo(db),
		Outbox:     outboxRepo,
		Locker:     pg.NewLocker(db, l),
		Transactor: pg.NewTransactor(db, l),
		Policy:     cfg.Alerting,
		Clock:      notification.SystemClock{},
	}
	return outboxRunner, &correlator.Controller{
		Log:    l,
		Sub:    cons,
		UC:     uc,
		Policy: cfg.Worker.Policy("correlate", l),
	}
}

func main() {
	cfgPath := pflag.String("config", "config/correlator.yaml", "path to config file")
	pflag.Parse()

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting correlator",
		zap.Any("kafka_in", cfg.In),
		zap.Any("kafka_out", cfg.Out),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, map[string]obs.HealthCheck{
		"postgres": db.Ping,
		"kafka":    func(ctx context.Context) error { return kafka.Ping(ctx, cfg.In.Brokers) },
	}, l)

	cons := kafka.BootstrapConsumer(root, cfg.In.AsConsumerConfig(l), l).WithLogger(l)
	defer func() { _ = cons.Close() }()
	prod := kafka.BootstrapProducer(root, cfg.Out.Brokers, cfg.Out.Topic, cfg.Out.Partitions, l)
	defer func() { _ = prod.Close() }()

	outboxRunner, ctrl := wire(cfg, db, prod, cons, l)

	g, ctx := errgroup.WithContext(root)
	g.Go(func() error { return outboxRunner.Run(ctx) })
	g.Go(func() error { return ctrl.Run(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("correlator stopped", zap.Error(err))
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
