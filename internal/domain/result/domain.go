package result

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
)

// Result is one completed check. Rows are only ever inserted.
type Result struct {
	ID          uuid.UUID     `json:"id"`
	MonitorID   int64         `json:"monitor_id"`
	CheckType   check.Type    `json:"check_type"`
	TriggerType check.Trigger `json:"trigger_type"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	DurationMs  int64         `json:"duration_ms"`
	Status      Status        `json:"status"`

	UptimeStatus   null.String `json:"uptime_status"`
	HTTPStatusCode null.Int    `json:"http_status_code"`
	ResponseTimeMs null.Int    `json:"response_time_ms"`
	FinalURL       null.String `json:"final_url"`
	RedirectCount  null.Int    `json:"redirect_count"`

	SSLStatus           null.String `json:"ssl_status"`
	SSLIssuer           null.String `json:"ssl_issuer"`
	SSLSubject          null.String `json:"ssl_subject"`
	SSLExpiresAt        null.Time   `json:"ssl_expires_at"`
	DaysUntilExpiration null.Int    `json:"days_until_expiration"`

	ErrorMessage null.String `json:"error_message"`
	Warnings     []string    `json:"warnings"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (r *Result) HasUptime() bool { return r.CheckType.IncludesUptime() && r.UptimeStatus.Valid }
func (r *Result) HasSSL() bool    { return r.CheckType.IncludesSSL() && r.SSLStatus.Valid }

func (r *Result) Uptime() check.UptimeStatus { return check.UptimeStatus(r.UptimeStatus.String) }
func (r *Result) SSL() check.SSLStatus       { return check.SSLStatus(r.SSLStatus.String) }

// DurationMs is the rounded wall time between start and completion, never negative.
func DurationMs(started, completed time.Time) int64 {
	ms := math.Round(float64(completed.Sub(started)) / float64(time.Millisecond))
	if ms < 0 {
		return 0
	}
	return int64(ms)
}
