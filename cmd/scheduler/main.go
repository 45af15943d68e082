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

	config "github.com/NordCoder/Sitewatch/internal/config/scheduler"
	"github.com/NordCoder/Sitewatch/internal/obs"
	kafkaRepo "github.com/NordCoder/Sitewatch/internal/repository/kafka"
	pg "github.com/NordCoder/Sitewatch/internal/repository/postgres"
	"github.com/NordCoder/Sitewatch/internal/services/aggregator"
	"github.com/NordCoder/Sitewatch/internal/services/scheduler"
)

func main() {
	cfgPath := pflag.String("config", "config/scheduler.yaml", "path to config file")
	pflag.Parse()

	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	l.Info("starting scheduler",
		zap.Any("kafka_out", cfg.Kafka),
		zap.Any("jobs", cfg.Jobs),
		zap.String("ops_grpc", cfg.Ops.GRPCAddr),
		zap.String("ops_http", cfg.Ops.HTTPAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// kafka
	kafkaProd := kafkaRepo.BootstrapProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, l)
	defer func() { _ = kafkaProd.Close() }()

	// wiring
	results := pg.NewResultRepo(db)
	locker := pg.NewLocker(db, l)
	uc := &scheduler.Usecase{
		Log:      l,
		Monitors: pg.NewMonitorRepo(db),
		Results:  results,
		Requests: kafkaRepo.NewCheckRequestsKafka(kafkaProd),
		Audit:    pg.NewAuditRepo(db),
		Aggregator: &aggregator.Aggregator{
			Log:        l,
			Results:    results,
			Summaries:  pg.NewSummaryRepo(db),
			Locker:     locker,
			Transactor: pg.NewTransactor(db, l),
			Workers:    cfg.Sched.AggregateWorkers,
		},
	}
	runner := scheduler.New(l, uc, cfg, locker)

	// ops health
	hr := obs.NewHealthReporter(cfg.Sched.HealthInterval, l)
	hr.Register("postgres", db.Ping)
	hr.Register("kafka", func(ctx context.Context) error { return kafkaRepo.Ping(ctx, cfg.Kafka.Brokers) })
	hr.Register("scheduler", runner.Beat.Check(cfg.Sched.StaleAfter, time.Now))
	ops, err := obs.StartOpsServer(cfg.Ops.AsOpsConfig(), hr, l)
	if err != nil {
		l.Fatal("ops server", zap.Error(err))
	}

	// run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { hr.Run(gctx); return nil })
	g.Go(func() error { return runner.Run(gctx) })
	l.Info("scheduler started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("runner error", zap.Error(err))
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ops.Shutdown(shCtx)
	l.Info("bye")
}
