package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
)

var _ alert.Repo = (*AlertRepoImpl)(nil)

type AlertRepoImpl struct{ db *DB }

func NewAlertRepo(db *DB) *AlertRepoImpl { return &AlertRepoImpl{db: db} }

const alertCols = `id, monitor_id, alert_type, severity, title, message, trigger_value, detected_at,
       acknowledged_at, resolved_at`

const (
	// the partial unique index makes a racing second insert a silent no-op
	qAlertInsert = `
INSERT INTO monitoring_alerts (id, monitor_id, alert_type, severity, title, message, trigger_value, detected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (monitor_id, alert_type) WHERE resolved_at IS NULL DO NOTHING
RETURNING id;`

	qAlertGetUnresolved = `
SELECT ` + alertCols + `
FROM monitoring_alerts
WHERE monitor_id = $1 AND alert_type = $2 AND resolved_at IS NULL;`

	qAlertListUnresolved = `
SELECT ` + alertCols + `
FROM monitoring_alerts
WHERE monitor_id = $1 AND resolved_at IS NULL
ORDER BY detected_at;`

	qAlertResolve = `
UPDATE monitoring_alerts
SET resolved_at = $2
WHERE id = $1 AND resolved_at IS NULL;`

	qAlertAcknowledge = `
UPDATE monitoring_alerts
SET acknowledged_at = COALESCE(acknowledged_at, $2)
WHERE id = $1;`
)

func scanAlert(row pgx.Row, a *alert.Alert) error {
	var (
		typ, severity string
		trigger       []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.MonitorID,
		&typ,
		&severity,
		&a.Title,
		&a.Message,
		&trigger,
		&a.DetectedAt,
		&a.AcknowledgedAt,
		&a.ResolvedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan alert: %w", err)
	}
	a.Type = alert.Type(typ)
	a.Severity = alert.Severity(severity)
	if len(trigger) > 0 {
		if err := json.Unmarshal(trigger, &a.TriggerValue); err != nil {
			return fmt.Errorf("decode trigger value: %w", err)
		}
	}
	return nil
}

func (r *AlertRepoImpl) Create(ctx context.Context, a *alert.Alert) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	trigger, err := json.Marshal(a.TriggerValue)
	if err != nil {
		return fmt.Errorf("encode trigger value: %w", err)
	}
	if a.TriggerValue == nil {
		trigger = []byte("{}")
	}

	var id uuid.UUID
	err = r.db.execQueryer(ctx).QueryRow(ctx, qAlertInsert,
		a.ID,
		a.MonitorID,
		string(a.Type),
		string(a.Severity),
		a.Title,
		a.Message,
		trigger,
		a.DetectedAt.UTC(),
	).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return ErrConflict
	case err != nil:
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *AlertRepoImpl) GetUnresolved(ctx context.Context, monitorID int64, t alert.Type) (*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var a alert.Alert
	if err := scanAlert(r.db.execQueryer(ctx).QueryRow(ctx, qAlertGetUnresolved, monitorID, string(t)), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AlertRepoImpl) ListUnresolved(ctx context.Context, monitorID int64) ([]*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qAlertListUnresolved, monitorID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		var a alert.Alert
		if err := scanAlert(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *AlertRepoImpl) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.touch(ctx, qAlertResolve, id, at)
}

func (r *AlertRepoImpl) Acknowledge(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.touch(ctx, qAlertAcknowledge, id, at)
}

func (r *AlertRepoImpl) touch(ctx context.Context, q string, id uuid.UUID, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, q, id, at.UTC())
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
