package summary

import (
	"context"
	"time"
)

type Repo interface {
	// Upsert writes the row keyed by (monitor, period, period start), replacing any previous stats.
	Upsert(ctx context.Context, s *Summary) error
	Get(ctx context.Context, monitorID int64, period Period, start time.Time) (*Summary, error)
	ListByMonitor(ctx context.Context, monitorID int64, period Period, limit int) ([]*Summary, error)
}
