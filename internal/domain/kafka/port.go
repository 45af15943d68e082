package kafka

import (
	"context"

	"github.com/NordCoder/Sitewatch/internal/domain/events"
)

type CheckEvents interface {
	PublishCheckCompleted(ctx context.Context, ev events.CheckCompleted) error
	PublishCheckFailed(ctx context.Context, ev events.CheckFailed) error
}

type AlertEvents interface {
	PublishAlertRaised(ctx context.Context, ev events.Alert) error
	PublishAlertResolved(ctx context.Context, ev events.Alert) error
}
