package result

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	Insert(ctx context.Context, r *Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*Result, error)
	ListWindow(ctx context.Context, monitorID int64, from, to time.Time) ([]*Result, error)
	// RecentUptime returns the newest uptime-bearing results first.
	RecentUptime(ctx context.Context, monitorID int64, limit int) ([]*Result, error)
	MonitorsWithResults(ctx context.Context, from, to time.Time) ([]int64, error)
	CountOlderThan(ctx context.Context, before time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
