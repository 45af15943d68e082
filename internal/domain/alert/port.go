package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	GetUnresolved(ctx context.Context, monitorID int64, t Type) (*Alert, error)
	// Create fails with a conflict when an unresolved alert of the same type exists.
	Create(ctx context.Context, a *Alert) error
	Resolve(ctx context.Context, id uuid.UUID, at time.Time) error
	Acknowledge(ctx context.Context, id uuid.UUID, at time.Time) error
	ListUnresolved(ctx context.Context, monitorID int64) ([]*Alert, error)
}
