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

	config "github.com/NordCoder/Sitewatch/internal/config/notifier"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/repository/kafka"
	pg "github.com/NordCoder/Sitewatch/internal/repository/postgres"
	"github.com/NordCoder/Sitewatch/internal/services/notifier"
)

func channels(cfg *config.Config, l *zap.Logger) []notification.Channel {
	var out []notification.Channel
	if cfg.SMTP.Enable {
		out = append(out, &notifier.EmailChannel{
			Mailer: notifier.NewMailer(cfg.SMTP).WithLogger(l),
			To:     cfg.Notify.EmailTo,
		})
	}
	for _, ch := range notifier.NewShoutrrrChannels(cfg.Notify.ShoutrrrURLs) {
		out = append(out, ch)
	}
	return out
}

func wiring(db *pg.DB, cfg *config.Config, cons *kafka.Consumer, l *zap.Logger) *notifier.Controller {
	uc := &notifier.Handler{
		Log:      l,
		Store:    pg.NewNotificationRepo(db),
		Channels: channels(cfg, l),
		Render:   notifier.Renderer{Policy: cfg.Alerting},
		Clock:    notification.SystemClock{},
	}
	return &notifier.Controller{Log: l, Sub: cons, UC: uc, Policy: cfg.Worker.Policy("notify", l)}
}

func main() {
	cfgPath := pflag.String("config", "config/notifier.yaml", "path to config file")
	pflag.Parse()

	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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

	l.Info("starting notifier",
		zap.Any("kafka_in", cfg.In),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.Bool("smtp", cfg.SMTP.Enable),
		zap.Int("shoutrrr_urls", len(cfg.Notify.ShoutrrrURLs)),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	} else {
		defer func() { _ = otelCloser.Shutdown(context.Background()) }()
	}

	// db
	db, err := pg.New(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, map[string]obs.HealthCheck{
		"postgres": db.Ping,
		"kafka":    func(ctx context.Context) error { return kafka.Ping(ctx, cfg.In.Brokers) },
	}, l)

	// kafka
	cons := kafka.BootstrapConsumer(rootCtx, cfg.In.AsConsumerConfig(l), l).WithLogger(l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl := wiring(db, cfg, cons, l)
	if err := ctrl.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("controller error", zap.Error(err))
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
