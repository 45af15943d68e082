package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
)

type Kind string

const (
	KindCheckCompleted Kind = "check.completed"
	KindCheckFailed    Kind = "check.failed"
	KindAlertRaised    Kind = "alert.raised"
	KindAlertResolved  Kind = "alert.resolved"
)

// Envelope tags a payload so several event kinds can share a topic.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func Wrap(kind Kind, v any) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Data: b}, nil
}

type CheckResults struct {
	Status              result.Status      `json:"status"`
	UptimeStatus        check.UptimeStatus `json:"uptime_status,omitempty"`
	SSLStatus           check.SSLStatus    `json:"ssl_status,omitempty"`
	HTTPStatusCode      *int64             `json:"http_status_code,omitempty"`
	ResponseTimeMs      *int64             `json:"response_time_ms,omitempty"`
	DaysUntilExpiration *int64             `json:"days_until_expiration,omitempty"`
}

type CheckCompleted struct {
	MonitorID   int64         `json:"monitor_id"`
	ResultID    uuid.UUID     `json:"result_id"`
	CheckType   check.Type    `json:"check_type"`
	TriggerType check.Trigger `json:"trigger_type"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Results     CheckResults  `json:"results"`
}

func CompletedFrom(r *result.Result) CheckCompleted {
	return CheckCompleted{
		MonitorID:   r.MonitorID,
		ResultID:    r.ID,
		CheckType:   r.CheckType,
		TriggerType: r.TriggerType,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Results: CheckResults{
			Status:              r.Status,
			UptimeStatus:        r.Uptime(),
			SSLStatus:           r.SSL(),
			HTTPStatusCode:      r.HTTPStatusCode.Ptr(),
			ResponseTimeMs:      r.ResponseTimeMs.Ptr(),
			DaysUntilExpiration: r.DaysUntilExpiration.Ptr(),
		},
	}
}

type CheckFailed struct {
	MonitorID   int64         `json:"monitor_id"`
	CheckType   check.Type    `json:"check_type"`
	TriggerType check.Trigger `json:"trigger_type"`
	Exception   string        `json:"exception"`
	FailedAt    time.Time     `json:"failed_at"`
}

// Alert is the payload of both AlertRaised and AlertResolved.
type Alert struct {
	AlertID             uuid.UUID      `json:"alert_id"`
	MonitorID           int64          `json:"monitor_id"`
	MonitorURL          string         `json:"monitor_url"`
	AlertType           alert.Type     `json:"alert_type"`
	Severity            alert.Severity `json:"severity"`
	Title               string         `json:"title"`
	Message             string         `json:"message"`
	DaysUntilExpiration *int           `json:"days_until_expiration,omitempty"`
	DetectedAt          time.Time      `json:"detected_at"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
}
