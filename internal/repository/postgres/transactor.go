package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/obs"
)

var txDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "postgres_tx_duration_seconds",
	Help:    "Wall time of WithTx transactions by outcome.",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"outcome"})

// Transactor runs a function inside one transaction. Repositories called
// with the returned ctx pick the transaction up through execQueryer.
type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

var _ Transactor = (*transactorImpl)(nil)

type transactorImpl struct {
	db     *DB
	logger *zap.Logger
}

func NewTransactor(db *DB, logger *zap.Logger) *transactorImpl {
	return &transactorImpl{
		db:     db,
		logger: logger.With(zap.String("component", "postgres.tx")),
	}
}

// WithTx commits when function returns nil and rolls back on error or panic.
// A ctx that already carries a transaction is reused, so advisory locks taken
// by the caller stay held for the nested work.
func (t *transactorImpl) WithTx(ctx context.Context, function func(ctx context.Context) error) (txErr error) {
	if _, err := extractTx(ctx); err == nil {
		return function(ctx)
	}

	ctx, span := otel.Tracer("postgres").Start(ctx, "postgres.tx")
	start := time.Now()
	outcome := "rollback"
	defer func() {
		txDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("tx.outcome", outcome))
		obs.EndSpan(span, txErr)
	}()

	ctxWithTx, tx, err := injectTx(ctx, t.db)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			t.rollback(ctx, tx)
			panic(p)
		}
		if txErr != nil {
			t.rollback(ctx, tx)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			t.logger.Error("commit", zap.Error(err))
			txErr = fmt.Errorf("commit: %w", err)
			return
		}
		outcome = "commit"
	}()

	if err := function(ctxWithTx); err != nil {
		return fmt.Errorf("function execution error: %w", err)
	}
	return nil
}

// rollback uses a fresh context so a cancelled caller still releases the
// connection and its transaction-scoped locks.
func (t *transactorImpl) rollback(ctx context.Context, tx pgx.Tx) {
	rctx, cancel := t.db.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := tx.Rollback(rctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		t.logger.Error("rollback", zap.Error(err))
	}
}

type txInjector struct{}

var ErrTxNotFound = errors.New("tx not found in context")

func injectTx(ctx context.Context, pool *DB) (context.Context, pgx.Tx, error) {
	if tx, err := extractTx(ctx); err == nil {
		return ctx, tx, nil
	}

	tx, err := pool.Pool.Begin(ctx)

	if err != nil {
		return nil, nil, err
	}

	return context.WithValue(ctx, txInjector{}, tx), tx, nil
}

func extractTx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txInjector{}).(pgx.Tx)

	if !ok {
		return nil, ErrTxNotFound
	}

	return tx, nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, err := extractTx(ctx); err == nil && tx != nil {
		return tx
	}
	return db.Pool
}
