package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Sitewatch/internal/domain/summary"
)

var _ summary.Repo = (*SummaryRepoImpl)(nil)

type SummaryRepoImpl struct{ db *DB }

func NewSummaryRepo(db *DB) *SummaryRepoImpl { return &SummaryRepoImpl{db: db} }

const summaryCols = `monitor_id, period, period_start, period_end, total_checks, successful_checks, failed_checks,
       total_uptime_checks, successful_uptime_checks, failed_uptime_checks, uptime_percentage,
       average_response_time_ms, min_response_time_ms, max_response_time_ms, p95_response_time_ms,
       p99_response_time_ms, total_ssl_checks, successful_ssl_checks, failed_ssl_checks,
       certificates_expiring, certificates_expired, updated_at`

const (
	qSummaryUpsert = `
INSERT INTO monitoring_check_summaries (monitor_id, period, period_start, period_end, total_checks,
    successful_checks, failed_checks, total_uptime_checks, successful_uptime_checks, failed_uptime_checks,
    uptime_percentage, average_response_time_ms, min_response_time_ms, max_response_time_ms,
    p95_response_time_ms, p99_response_time_ms, total_ssl_checks, successful_ssl_checks, failed_ssl_checks,
    certificates_expiring, certificates_expired, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, NOW())
ON CONFLICT (monitor_id, period, period_start) DO UPDATE SET
    period_end = EXCLUDED.period_end,
    total_checks = EXCLUDED.total_checks,
    successful_checks = EXCLUDED.successful_checks,
    failed_checks = EXCLUDED.failed_checks,
    total_uptime_checks = EXCLUDED.total_uptime_checks,
    successful_uptime_checks = EXCLUDED.successful_uptime_checks,
    failed_uptime_checks = EXCLUDED.failed_uptime_checks,
    uptime_percentage = EXCLUDED.uptime_percentage,
    average_response_time_ms = EXCLUDED.average_response_time_ms,
    min_response_time_ms = EXCLUDED.min_response_time_ms,
    max_response_time_ms = EXCLUDED.max_response_time_ms,
    p95_response_time_ms = EXCLUDED.p95_response_time_ms,
    p99_response_time_ms = EXCLUDED.p99_response_time_ms,
    total_ssl_checks = EXCLUDED.total_ssl_checks,
    successful_ssl_checks = EXCLUDED.successful_ssl_checks,
    failed_ssl_checks = EXCLUDED.failed_ssl_checks,
    certificates_expiring = EXCLUDED.certificates_expiring,
    certificates_expired = EXCLUDED.certificates_expired,
    updated_at = NOW()
RETURNING updated_at;`

	qSummaryGet = `
SELECT ` + summaryCols + `
FROM monitoring_check_summaries
WHERE monitor_id = $1 AND period = $2 AND period_start = $3;`

	qSummaryListByMonitor = `
SELECT ` + summaryCols + `
FROM monitoring_check_summaries
WHERE monitor_id = $1 AND period = $2
ORDER BY period_start DESC
LIMIT $3;`
)

func scanSummary(row pgx.Row, s *summary.Summary) error {
	var period string
	if err := row.Scan(
		&s.MonitorID,
		&period,
		&s.PeriodStart,
		&s.PeriodEnd,
		&s.TotalChecks,
		&s.SuccessfulChecks,
		&s.FailedChecks,
		&s.TotalUptimeChecks,
		&s.SuccessfulUptimeChecks,
		&s.FailedUptimeChecks,
		&s.UptimePercentage,
		&s.AverageResponseTimeMs,
		&s.MinResponseTimeMs,
		&s.MaxResponseTimeMs,
		&s.P95ResponseTimeMs,
		&s.P99ResponseTimeMs,
		&s.TotalSSLChecks,
		&s.SuccessfulSSLChecks,
		&s.FailedSSLChecks,
		&s.CertificatesExpiring,
		&s.CertificatesExpired,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan summary: %w", err)
	}
	s.Period = summary.Period(period)
	return nil
}

func (r *SummaryRepoImpl) Upsert(ctx context.Context, s *summary.Summary) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qSummaryUpsert,
		s.MonitorID,
		string(s.Period),
		s.PeriodStart.UTC(),
		s.PeriodEnd.UTC(),
		s.TotalChecks,
		s.SuccessfulChecks,
		s.FailedChecks,
		s.TotalUptimeChecks,
		s.SuccessfulUptimeChecks,
		s.FailedUptimeChecks,
		s.UptimePercentage,
		s.AverageResponseTimeMs,
		s.MinResponseTimeMs,
		s.MaxResponseTimeMs,
		s.P95ResponseTimeMs,
		s.P99ResponseTimeMs,
		s.TotalSSLChecks,
		s.SuccessfulSSLChecks,
		s.FailedSSLChecks,
		s.CertificatesExpiring,
		s.CertificatesExpired,
	).Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (r *SummaryRepoImpl) Get(ctx context.Context, monitorID int64, period summary.Period, start time.Time) (*summary.Summary, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s summary.Summary
	if err := scanSummary(r.db.execQueryer(ctx).QueryRow(ctx, qSummaryGet, monitorID, string(period), start.UTC()), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SummaryRepoImpl) ListByMonitor(ctx context.Context, monitorID int64, period summary.Period, limit int) ([]*summary.Summary, error) {
	if limit <= 0 {
		limit = 24
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qSummaryListByMonitor, monitorID, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	out := make([]*summary.Summary, 0, limit)
	for rows.Next() {
		var s summary.Summary
		if err := scanSummary(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
