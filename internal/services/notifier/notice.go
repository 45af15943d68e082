package notifier

import (
	"fmt"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/notification"
)

// Notice is a closed set of alert notifications. Each variant is rendered
// by its own Visitor method.
type Notice interface {
	Accept(v Visitor) Message
	Event() events.Alert
	Kind() notification.Kind
}

type Visitor interface {
	VisitSSLExpiring(n SSLExpiring) Message
	VisitSSLInvalid(n SSLInvalid) Message
	VisitUptimeDown(n UptimeDown) Message
	VisitUptimeUp(n UptimeUp) Message
	VisitPerformanceDegradation(n PerformanceDegradation) Message
}

type Message struct {
	Subject string
	Body    string
}

type base struct {
	ev   events.Alert
	kind notification.Kind
}

func (b base) Event() events.Alert     { return b.ev }
func (b base) Kind() notification.Kind { return b.kind }
func (b base) Resolved() bool          { return b.kind == notification.KindResolved }

type SSLExpiring struct{ base }

func (n SSLExpiring) Accept(v Visitor) Message { return v.VisitSSLExpiring(n) }

// Days falls back to zero when the event carried no expiry figure.
func (n SSLExpiring) Days() int {
	if n.ev.DaysUntilExpiration == nil {
		return 0
	}
	return *n.ev.DaysUntilExpiration
}

type SSLInvalid struct{ base }

func (n SSLInvalid) Accept(v Visitor) Message { return v.VisitSSLInvalid(n) }

type UptimeDown struct{ base }

func (n UptimeDown) Accept(v Visitor) Message { return v.VisitUptimeDown(n) }

// UptimeUp is the resolution of an UptimeDown alert.
type UptimeUp struct{ base }

func (n UptimeUp) Accept(v Visitor) Message { return v.VisitUptimeUp(n) }

type PerformanceDegradation struct{ base }

func (n PerformanceDegradation) Accept(v Visitor) Message { return v.VisitPerformanceDegradation(n) }

func FromEvent(kind notification.Kind, ev events.Alert) (Notice, error) {
	b := base{ev: ev, kind: kind}
	switch ev.AlertType {
	case alert.TypeSSLExpiring:
		return SSLExpiring{b}, nil
	case alert.TypeSSLInvalid:
		return SSLInvalid{b}, nil
	case alert.TypeUptimeDown:
		if kind == notification.KindResolved {
			return UptimeUp{b}, nil
		}
		return UptimeDown{b}, nil
	case alert.TypePerformanceDegradation:
		return PerformanceDegradation{b}, nil
	default:
		return nil, fmt.Errorf("unknown alert type %q", ev.AlertType)
	}
}
