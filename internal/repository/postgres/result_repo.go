package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
)

var _ result.Repo = (*ResultRepoImpl)(nil)

type ResultRepoImpl struct{ db *DB }

func NewResultRepo(db *DB) *ResultRepoImpl { return &ResultRepoImpl{db: db} }

const resultCols = `id, monitor_id, check_type, trigger_type, started_at, completed_at, duration_ms, status,
       uptime_status, http_status_code, response_time_ms, final_url, redirect_count,
       ssl_status, ssl_issuer, ssl_subject, ssl_expires_at, days_until_expiration,
       error_message, warnings, created_at`

const (
	qResultInsert = `
INSERT INTO monitoring_results (id, monitor_id, check_type, trigger_type, started_at, completed_at, duration_ms,
                                status, uptime_status, http_status_code, response_time_ms, final_url, redirect_count,
                                ssl_status, ssl_issuer, ssl_subject, ssl_expires_at, days_until_expiration,
                                error_message, warnings)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING created_at;`

	qResultGetByID = `
SELECT ` + resultCols + `
FROM monitoring_results
WHERE id = $1;`

	qResultWindow = `
SELECT ` + resultCols + `
FROM monitoring_results
WHERE monitor_id = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at;`

	qResultRecentUptime = `
SELECT ` + resultCols + `
FROM monitoring_results
WHERE monitor_id = $1 AND check_type IN ('uptime', 'both') AND uptime_status IS NOT NULL
ORDER BY started_at DESC
LIMIT $2;`

	qResultMonitorsInWindow = `
SELECT DISTINCT monitor_id
FROM monitoring_results
WHERE started_at >= $1 AND started_at < $2
ORDER BY monitor_id;`

	qResultCountOlder = `SELECT COUNT(*) FROM monitoring_results WHERE started_at < $1;`

	qResultDeleteOlder = `DELETE FROM monitoring_results WHERE started_at < $1;`
)

func scanResult(row pgx.Row, r *result.Result) error {
	var checkType, trigger, status string
	if err := row.Scan(
		&r.ID,
		&r.MonitorID,
		&checkType,
		&trigger,
		&r.StartedAt,
		&r.CompletedAt,
		&r.DurationMs,
		&status,
		&r.UptimeStatus,
		&r.HTTPStatusCode,
		&r.ResponseTimeMs,
		&r.FinalURL,
		&r.RedirectCount,
		&r.SSLStatus,
		&r.SSLIssuer,
		&r.SSLSubject,
		&r.SSLExpiresAt,
		&r.DaysUntilExpiration,
		&r.ErrorMessage,
		&r.Warnings,
		&r.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan result: %w", err)
	}
	r.CheckType = check.Type(checkType)
	r.TriggerType = check.Trigger(trigger)
	r.Status = result.Status(status)
	return nil
}

func (r *ResultRepoImpl) Insert(ctx context.Context, res *result.Result) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qResultInsert,
		res.ID,
		res.MonitorID,
		string(res.CheckType),
		string(res.TriggerType),
		res.StartedAt.UTC(),
		res.CompletedAt.UTC(),
		res.DurationMs,
		string(res.Status),
		res.UptimeStatus,
		res.HTTPStatusCode,
		res.ResponseTimeMs,
		res.FinalURL,
		res.RedirectCount,
		res.SSLStatus,
		res.SSLIssuer,
		res.SSLSubject,
		res.SSLExpiresAt,
		res.DaysUntilExpiration,
		res.ErrorMessage,
		nonNil(res.Warnings),
	).Scan(&res.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *ResultRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*result.Result, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var res result.Result
	if err := scanResult(r.db.execQueryer(ctx).QueryRow(ctx, qResultGetByID, id), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ResultRepoImpl) ListWindow(ctx context.Context, monitorID int64, from, to time.Time) ([]*result.Result, error) {
	return r.list(ctx, qResultWindow, monitorID, from.UTC(), to.UTC())
}

func (r *ResultRepoImpl) RecentUptime(ctx context.Context, monitorID int64, limit int) ([]*result.Result, error) {
	if limit <= 0 {
		limit = 1
	}
	return r.list(ctx, qResultRecentUptime, monitorID, limit)
}

func (r *ResultRepoImpl) list(ctx context.Context, q string, args ...any) ([]*result.Result, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []*result.Result
	for rows.Next() {
		var res result.Result
		if err := scanResult(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ResultRepoImpl) MonitorsWithResults(ctx context.Context, from, to time.Time) ([]int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qResultMonitorsInWindow, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query monitors in window: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect monitor ids: %w", err)
	}
	return ids, nil
}

func (r *ResultRepoImpl) CountOlderThan(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qResultCountOlder, before.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// DeleteOlderThan runs without the query timeout; large prunes can take a while.
func (r *ResultRepoImpl) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qResultDeleteOlder, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return cmd.RowsAffected(), nil
}
