package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/Sitewatch/internal/domain/audit"
)

var _ audit.Repo = (*AuditRepoImpl)(nil)

type AuditRepoImpl struct{ db *DB }

func NewAuditRepo(db *DB) *AuditRepoImpl { return &AuditRepoImpl{db: db} }

const (
	qAuditInsert = `
INSERT INTO monitoring_events (id, monitor_id, event_type, actor, source, payload)
VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6)
RETURNING created_at;`

	qAuditByMonitor = `
SELECT id, COALESCE(monitor_id, 0), event_type, actor, source, payload, created_at
FROM monitoring_events
WHERE monitor_id = $1
ORDER BY created_at DESC
LIMIT $2;`
)

func (r *AuditRepoImpl) Append(ctx context.Context, e *audit.Event) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	payload := []byte("{}")
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode event payload: %w", err)
		}
		payload = b
	}

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qAuditInsert,
		e.ID, e.MonitorID, string(e.Type), e.Actor, string(e.Source), payload,
	).Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *AuditRepoImpl) ListByMonitor(ctx context.Context, monitorID int64, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qAuditByMonitor, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]*audit.Event, 0, limit)
	for rows.Next() {
		var (
			e           audit.Event
			typ, source string
			payload     []byte
		)
		if err := rows.Scan(&e.ID, &e.MonitorID, &typ, &e.Actor, &source, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = audit.Type(typ)
		e.Source = audit.Source(source)
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
