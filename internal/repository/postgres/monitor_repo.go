package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
)

var _ monitor.Repo = (*MonitorRepoImpl)(nil)

type MonitorRepoImpl struct {
	db *DB
}

func NewMonitorRepo(db *DB) *MonitorRepoImpl { return &MonitorRepoImpl{db: db} }

const monitorCols = `id, name, url, uptime_check_enabled, certificate_check_enabled, check_interval_sec,
       javascript_enabled, javascript_wait_sec, expected_status_code, expected_content, forbidden_content,
       content_patterns, uptime_status, ssl_status, last_checked_at, next_run, created_at, updated_at, deleted_at`

const (
	qMonitorInsert = `
INSERT INTO monitors (name, url, uptime_check_enabled, certificate_check_enabled, check_interval_sec,
                      javascript_enabled, javascript_wait_sec, expected_status_code, expected_content,
                      forbidden_content, content_patterns, next_run)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
RETURNING ` + monitorCols + `;`

	qMonitorGetByID = `
SELECT ` + monitorCols + `
FROM monitors
WHERE id = $1;`

	qMonitorList = `
SELECT ` + monitorCols + `
FROM monitors
WHERE $1 OR deleted_at IS NULL
ORDER BY id;`

	qMonitorListCertificate = `
SELECT ` + monitorCols + `
FROM monitors
WHERE deleted_at IS NULL AND certificate_check_enabled
ORDER BY id;`

	qMonitorListMissingSSL = `
SELECT ` + monitorCols + `
FROM monitors m
WHERE deleted_at IS NULL
  AND certificate_check_enabled
  AND NOT EXISTS (
      SELECT 1 FROM monitoring_results r
      WHERE r.monitor_id = m.id
        AND r.check_type IN ('ssl', 'both')
        AND r.started_at >= $1
  )
ORDER BY id;`

	qMonitorFetchDue = `
SELECT ` + monitorCols + `
FROM monitors
WHERE deleted_at IS NULL AND uptime_check_enabled AND next_run <= NOW()
ORDER BY next_run
LIMIT $1
FOR UPDATE SKIP LOCKED;`

	qMonitorBumpNextRun = `
UPDATE monitors
SET next_run = NOW() + (check_interval_sec * INTERVAL '1 second'),
    updated_at = NOW()
WHERE id = ANY($1);`

	qMonitorUpdateStatus = `
UPDATE monitors
SET uptime_status = COALESCE(NULLIF($2, ''), uptime_status),
    ssl_status = COALESCE(NULLIF($3, ''), ssl_status),
    last_checked_at = $4,
    updated_at = NOW()
WHERE id = $1;`

	qMonitorUpdate = `
UPDATE monitors
SET name = $2,
    url = $3,
    uptime_check_enabled = $4,
    certificate_check_enabled = $5,
    check_interval_sec = $6,
    javascript_enabled = $7,
    javascript_wait_sec = $8,
    expected_status_code = $9,
    expected_content = $10,
    forbidden_content = $11,
    content_patterns = $12,
    updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + monitorCols + `;`

	qMonitorSoftDelete = `
UPDATE monitors
SET deleted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL;`
)

func scanMonitor(row pgx.Row, m *monitor.Monitor) error {
	var (
		intervalSec, jsWaitSec int
		uptime, ssl            string
	)
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.URL,
		&m.UptimeCheckEnabled,
		&m.CertificateCheckEnabled,
		&intervalSec,
		&m.JavaScriptEnabled,
		&jsWaitSec,
		&m.ExpectedStatusCode,
		&m.ExpectedContent,
		&m.ForbiddenContent,
		&m.ContentPatterns,
		&uptime,
		&ssl,
		&m.LastCheckedAt,
		&m.NextRun,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan monitor: %w", err)
	}
	m.CheckInterval = time.Duration(intervalSec) * time.Second
	m.JavaScriptWait = time.Duration(jsWaitSec) * time.Second
	m.UptimeStatus = check.UptimeStatus(uptime)
	m.SSLStatus = check.SSLStatus(ssl)
	return nil
}

func collectMonitors(rows pgx.Rows) ([]*monitor.Monitor, error) {
	defer rows.Close()
	var out []*monitor.Monitor
	for rows.Next() {
		var m monitor.Monitor
		if err := scanMonitor(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func intervalSeconds(d time.Duration) int {
	if sec := int(d / time.Second); sec > 0 {
		return sec
	}
	return 300
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *MonitorRepoImpl) Create(ctx context.Context, m *monitor.Monitor) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qMonitorInsert,
		m.Name,
		m.URL,
		m.UptimeCheckEnabled,
		m.CertificateCheckEnabled,
		intervalSeconds(m.CheckInterval),
		m.JavaScriptEnabled,
		int(m.JavaScriptWait/time.Second),
		m.ExpectedStatusCode,
		nonNil(m.ExpectedContent),
		nonNil(m.ForbiddenContent),
		nonNil(m.ContentPatterns),
	)
	return scanMonitor(row, m)
}

func (r *MonitorRepoImpl) GetByID(ctx context.Context, id int64) (*monitor.Monitor, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var m monitor.Monitor
	if err := scanMonitor(r.db.execQueryer(ctx).QueryRow(ctx, qMonitorGetByID, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MonitorRepoImpl) List(ctx context.Context, includeDeleted bool) ([]*monitor.Monitor, error) {
	return r.list(ctx, qMonitorList, includeDeleted)
}

func (r *MonitorRepoImpl) ListCertificateEnabled(ctx context.Context) ([]*monitor.Monitor, error) {
	return r.list(ctx, qMonitorListCertificate)
}

func (r *MonitorRepoImpl) ListMissingSSLResults(ctx context.Context, since time.Time) ([]*monitor.Monitor, error) {
	return r.list(ctx, qMonitorListMissingSSL, since.UTC())
}

func (r *MonitorRepoImpl) list(ctx context.Context, q string, args ...any) ([]*monitor.Monitor, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query monitors: %w", err)
	}
	return collectMonitors(rows)
}

// FetchDue claims up to limit due monitors and pushes their next_run forward
// in the same transaction, so concurrent schedulers never pick the same row.
func (r *MonitorRepoImpl) FetchDue(ctx context.Context, limit int) ([]*monitor.Monitor, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, qMonitorFetchDue, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due: %w", err)
	}
	out, err := collectMonitors(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(out))
	for _, m := range out {
		ids = append(ids, m.ID)
	}
	if _, err := tx.Exec(ctx, qMonitorBumpNextRun, ids); err != nil {
		return nil, fmt.Errorf("bump next_run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (r *MonitorRepoImpl) UpdateStatus(ctx context.Context, id int64, uptime check.UptimeStatus, ssl check.SSLStatus, checkedAt time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qMonitorUpdateStatus, id, string(uptime), string(ssl), checkedAt.UTC()); err != nil {
		return fmt.Errorf("update monitor status: %w", err)
	}
	return nil
}

// Update rewrites the editable columns of an active monitor and refreshes m
// from the stored row. Status columns and next_run are left untouched.
func (r *MonitorRepoImpl) Update(ctx context.Context, m *monitor.Monitor) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qMonitorUpdate,
		m.ID,
		m.Name,
		m.URL,
		m.UptimeCheckEnabled,
		m.CertificateCheckEnabled,
		intervalSeconds(m.CheckInterval),
		m.JavaScriptEnabled,
		int(m.JavaScriptWait/time.Second),
		m.ExpectedStatusCode,
		nonNil(m.ExpectedContent),
		nonNil(m.ForbiddenContent),
		nonNil(m.ContentPatterns),
	)
	return scanMonitor(row, m)
}

func (r *MonitorRepoImpl) SoftDelete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qMonitorSoftDelete, id)
	if err != nil {
		return fmt.Errorf("disable monitor: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
