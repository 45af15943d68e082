package notification

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindRaised   Kind = "raised"
	KindResolved Kind = "resolved"
)

type Notification struct {
	ID        int64     `json:"id"`
	AlertID   uuid.UUID `json:"alert_id"`
	MonitorID int64     `json:"monitor_id"`
	Kind      Kind      `json:"kind"`
	Channel   string    `json:"channel"`
	SentAt    time.Time `json:"sent_at"`
	Payload   string    `json:"payload"`
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
