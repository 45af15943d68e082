package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	config "github.com/NordCoder/Sitewatch/internal/config/monctl"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/repository/kafka"
	pg "github.com/NordCoder/Sitewatch/internal/repository/postgres"
	"github.com/NordCoder/Sitewatch/internal/services/aggregator"
	"github.com/NordCoder/Sitewatch/internal/services/correlator"
	"github.com/NordCoder/Sitewatch/internal/services/scheduler"
)

const usage = `usage: monctl [--config FILE] <command> [flags]

commands:
  check         [--all | --monitor ID] [--type uptime|ssl|both]
  backfill-ssl  [--since 24h]
  prune         [--older-than 2160h] [--dry-run] [--yes]
  monitor add   --name NAME --url URL [--uptime] [--ssl] [--interval 5m] ...
  monitor update ID [--name ...] [--url ...] [--interval ...] ...
  monitor disable ID
  monitor list  [--all]
  alert ack ID
  health        [--addr host:port]
`

// env carries what the commands need; the database and broker are opened
// only by commands that use them.
type env struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer
	in  io.Reader

	db   *pg.DB
	prod *kafka.Producer
}

func (e *env) usecase(ctx context.Context) (*scheduler.Usecase, error) {
	db, err := e.database(ctx)
	if err != nil {
		return nil, err
	}
	if e.prod == nil {
		e.prod = kafka.NewProducer(e.cfg.Kafka.Brokers, e.cfg.Kafka.Topic).WithLogger(e.log)
	}
	results := pg.NewResultRepo(db)
	return &scheduler.Usecase{
		Log:      e.log,
		Monitors: pg.NewMonitorRepo(db),
		Results:  results,
		Requests: kafka.NewCheckRequestsKafka(e.prod),
		Audit:    pg.NewAuditRepo(db),
		Aggregator: &aggregator.Aggregator{
			Log:        e.log,
			Results:    results,
			Summaries:  pg.NewSummaryRepo(db),
			Locker:     pg.NewLocker(db, e.log),
			Transactor: pg.NewTransactor(db, e.log),
		},
	}, nil
}

func (e *env) alerts(ctx context.Context) (*correlator.Correlator, error) {
	db, err := e.database(ctx)
	if err != nil {
		return nil, err
	}
	return &correlator.Correlator{
		Log:    e.log,
		Alerts: pg.NewAlertRepo(db),
		Clock:  notification.SystemClock{},
	}, nil
}

func (e *env) database(ctx context.Context) (*pg.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	if e.cfg.DB.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required (set DB_DSN or the config file)")
	}
	db, err := pg.New(ctx, e.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	e.db = db
	return db, nil
}

func (e *env) close() {
	if e.prod != nil {
		_ = e.prod.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

func main() {
	global := pflag.NewFlagSet("monctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	cfgPath := global.String("config", "config/monctl.yaml", "path to config file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, log: l, out: os.Stdout, in: os.Stdin}
	err = dispatch(ctx, e, global.Args())
	e.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, e *env, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "check":
		return runCheck(ctx, e, rest)
	case "backfill-ssl":
		return runBackfill(ctx, e, rest)
	case "prune":
		return runPrune(ctx, e, rest)
	case "monitor":
		return runMonitor(ctx, e, rest)
	case "alert":
		return runAlert(ctx, e, rest)
	case "health":
		return runHealth(ctx, e, rest)
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(e.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}
