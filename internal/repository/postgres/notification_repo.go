package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Sitewatch/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (alert_id, monitor_id, kind, channel, sent_at, payload)
VALUES ($1, $2, $3, $4, COALESCE($5, now()), $6)
ON CONFLICT (alert_id, kind, channel) DO NOTHING
RETURNING id, sent_at;
`
	qNotifExists = `
SELECT EXISTS (
    SELECT 1 FROM notifications
    WHERE alert_id = $1 AND kind = $2 AND channel = $3
);
`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifInsert,
		n.AlertID,
		n.MonitorID,
		string(n.Kind),
		n.Channel,
		nullTime(n.SentAt),
		n.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return ErrConflict
	}
	if err := rows.Scan(&n.ID, &n.SentAt); err != nil {
		return fmt.Errorf("scan notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) Exists(ctx context.Context, alertID uuid.UUID, kind notification.Kind, channel string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ok bool
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifExists, alertID, string(kind), channel).Scan(&ok); err != nil {
		return false, fmt.Errorf("query notification: %w", err)
	}
	return ok, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
