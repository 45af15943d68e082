package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

var (
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_sent_total", Help: "Notifications delivered by channel and kind.",
	}, []string{"channel", "kind"})
	notificationsDeduped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_deduplicated_total", Help: "Notifications skipped because they were already sent.",
	}, []string{"channel"})
	sendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_send_errors_total", Help: "Channel delivery failures.",
	}, []string{"channel"})
)

type Handler struct {
	Log      *zap.Logger
	Store    notification.Repo
	Channels []notification.Channel
	Render   Visitor
	Clock    notification.Clock
}

// HandleAlert renders the alert once and delivers it on every channel that
// has not already sent it. Failed channels are returned so a retry only
// resends to them.
func (h *Handler) HandleAlert(ctx context.Context, kind notification.Kind, ev events.Alert) error {
	notice, err := FromEvent(kind, ev)
	if err != nil {
		obs.WithTrace(ctx, h.Log).Warn("unrenderable alert; skip", zap.Error(err))
		return nil
	}
	msg := notice.Accept(h.Render)

	var errs []error
	for _, ch := range h.Channels {
		if err := h.deliver(ctx, ch, kind, ev, msg); err != nil {
			sendErrors.WithLabelValues(ch.Name()).Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) deliver(ctx context.Context, ch notification.Channel, kind notification.Kind, ev events.Alert, msg Message) error {
	log := obs.WithTrace(ctx, h.Log).With(
		zap.String("channel", ch.Name()),
		zap.String("alert_id", ev.AlertID.String()),
		zap.String("kind", string(kind)),
	)

	sent, err := h.Store.Exists(ctx, ev.AlertID, kind, ch.Name())
	if err != nil {
		return fmt.Errorf("check sent %s: %w", ch.Name(), err)
	}
	if sent {
		notificationsDeduped.WithLabelValues(ch.Name()).Inc()
		log.Debug("already notified")
		return nil
	}

	if err := ch.Send(ctx, msg.Subject, msg.Body); err != nil {
		log.Warn("send failed", zap.Error(err))
		return fmt.Errorf("send %s: %w", ch.Name(), err)
	}
	notificationsSent.WithLabelValues(ch.Name(), string(kind)).Inc()

	err = h.Store.Create(ctx, &notification.Notification{
		AlertID:   ev.AlertID,
		MonitorID: ev.MonitorID,
		Kind:      kind,
		Channel:   ch.Name(),
		SentAt:    h.Clock.Now(),
		Payload:   msg.Subject + "\n\n" + msg.Body,
	})
	if err != nil && !errors.Is(err, postgres.ErrConflict) {
		// delivered but unrecorded; a redelivery may send it again
		log.Error("record notification", zap.Error(err))
	}
	log.Info("notification sent", zap.String("subject", msg.Subject))
	return nil
}
