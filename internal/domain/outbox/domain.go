package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindCheckCompleted Kind = 1
	KindAlertRaised    Kind = 2
	KindAlertResolved  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindCheckCompleted:
		return "check_completed"
	case KindAlertRaised:
		return "alert_raised"
	case KindAlertResolved:
		return "alert_resolved"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
