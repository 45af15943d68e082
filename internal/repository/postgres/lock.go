package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	qTryAdvisoryLock  = `SELECT pg_try_advisory_lock(hashtextextended($1, 0));`
	qAdvisoryUnlock   = `SELECT pg_advisory_unlock(hashtextextended($1, 0));`
	qAdvisoryXactLock = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0));`
)

// Locker hands out Postgres advisory locks keyed by free-form strings.
type Locker struct {
	db     *DB
	logger *zap.Logger
}

func NewLocker(db *DB, logger *zap.Logger) *Locker {
	return &Locker{db: db, logger: logger.With(zap.String("component", "postgres.locker"))}
}

// TryRun runs fn while holding a session lock on name. It returns ErrLockHeld
// without running fn when another session owns the lock.
func (l *Locker) TryRun(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	conn, err := l.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	var ok bool
	if err := conn.QueryRow(ctx, qTryAdvisoryLock, name).Scan(&ok); err != nil {
		return fmt.Errorf("try lock %s: %w", name, err)
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(uctx, qAdvisoryUnlock, name); err != nil {
			l.logger.Warn("advisory unlock", zap.String("lock", name), zap.Error(err))
		}
	}()

	return fn(ctx)
}

// LockKey blocks until the transaction-scoped lock on key is granted. It must
// run inside WithTx; the lock is released at commit or rollback.
func (l *Locker) LockKey(ctx context.Context, key string) error {
	tx, err := extractTx(ctx)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	if _, err := tx.Exec(ctx, qAdvisoryXactLock, key); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	return nil
}
