package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repo interface {
	// Create fails with a conflict when the (alert, kind, channel) triple was already recorded.
	Create(ctx context.Context, n *Notification) error
	Exists(ctx context.Context, alertID uuid.UUID, kind Kind, channel string) (bool, error)
}

// Channel delivers a rendered message to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}
