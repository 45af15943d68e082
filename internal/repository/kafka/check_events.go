package kafka

import (
	"context"
	"fmt"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/kafka"
)

type CheckRequestsKafka struct {
	p *Producer
}

func NewCheckRequestsKafka(p *Producer) *CheckRequestsKafka { return &CheckRequestsKafka{p: p} }

var _ check.Requests = (*CheckRequestsKafka)(nil)

func (e *CheckRequestsKafka) PublishCheckRequested(ctx context.Context, req check.Request) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(req.MonitorID), req)
}

type CheckEventsKafka struct {
	p *Producer
}

func NewCheckEventsKafka(p *Producer) *CheckEventsKafka { return &CheckEventsKafka{p: p} }

var _ kafka.CheckEvents = (*CheckEventsKafka)(nil)

func (e *CheckEventsKafka) PublishCheckCompleted(ctx context.Context, ev events.CheckCompleted) error {
	return publishEnvelope(ctx, e.p, ev.MonitorID, events.KindCheckCompleted, ev)
}

func (e *CheckEventsKafka) PublishCheckFailed(ctx context.Context, ev events.CheckFailed) error {
	return publishEnvelope(ctx, e.p, ev.MonitorID, events.KindCheckFailed, ev)
}

type AlertEventsKafka struct {
	p *Producer
}

func NewAlertEventsKafka(p *Producer) *AlertEventsKafka { return &AlertEventsKafka{p: p} }

var _ kafka.AlertEvents = (*AlertEventsKafka)(nil)

func (e *AlertEventsKafka) PublishAlertRaised(ctx context.Context, ev events.Alert) error {
	return publishEnvelope(ctx, e.p, ev.MonitorID, events.KindAlertRaised, ev)
}

func (e *AlertEventsKafka) PublishAlertResolved(ctx context.Context, ev events.Alert) error {
	return publishEnvelope(ctx, e.p, ev.MonitorID, events.KindAlertResolved, ev)
}

// messages for one monitor share a key so they stay ordered on one partition
func publishEnvelope(ctx context.Context, p *Producer, monitorID int64, kind events.Kind, v any) error {
	env, err := events.Wrap(kind, v)
	if err != nil {
		return fmt.Errorf("wrap %s: %w", kind, err)
	}
	return p.PublishJSON(ctx, KeyFromInt64(monitorID), env)
}
