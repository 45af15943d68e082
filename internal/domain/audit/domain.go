package audit

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMonitorCreated       Type = "monitor_created"
	TypeMonitorUpdated       Type = "monitor_updated"
	TypeMonitorDisabled      Type = "monitor_disabled"
	TypeCheckForced          Type = "check_forced"
	TypeResultsPruned        Type = "results_pruned"
	TypeSSLBackfillRequested Type = "ssl_backfill_requested"
)

type Source string

const (
	SourceCLI       Source = "cli"
	SourceScheduler Source = "scheduler"
	SourceWorker    Source = "worker"
)

// Event is an append-only audit record. MonitorID is zero for fleet-wide events.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	MonitorID int64          `json:"monitor_id"`
	Type      Type           `json:"event_type"`
	Actor     string         `json:"actor"`
	Source    Source         `json:"source"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
