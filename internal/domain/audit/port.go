package audit

import "context"

type Repo interface {
	Append(ctx context.Context, e *Event) error
	ListByMonitor(ctx context.Context, monitorID int64, limit int) ([]*Event, error)
}
