package alert

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSSLExpiring            Type = "ssl_expiring"
	TypeSSLInvalid             Type = "ssl_invalid"
	TypeUptimeDown             Type = "uptime_down"
	TypePerformanceDegradation Type = "performance_degradation"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityUrgent   Severity = "urgent"
	SeverityCritical Severity = "critical"
)

// Alert is unresolved while ResolvedAt is nil; at most one unresolved alert
// exists per monitor and type.
type Alert struct {
	ID             uuid.UUID      `json:"id"`
	MonitorID      int64          `json:"monitor_id"`
	Type           Type           `json:"alert_type"`
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	TriggerValue   map[string]any `json:"trigger_value"`
	DetectedAt     time.Time      `json:"detected_at"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
}

func (a *Alert) Unresolved() bool { return a.ResolvedAt == nil }
