package notifier

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
)

var _ Visitor = Renderer{}

// Renderer turns notices into plain-text messages. SSL subjects use the
// same tiering as the alerts themselves.
type Renderer struct {
	Policy alert.Policy
}

func (r Renderer) VisitSSLExpiring(n SSLExpiring) Message {
	ev := n.Event()
	host := hostOf(ev.MonitorURL)
	if n.Resolved() {
		return r.message(
			fmt.Sprintf("[RESOLVED] SSL certificate for %s renewed", host),
			n.base, "The certificate no longer expires soon.")
	}
	tier := r.Policy.WithDefaults().SSLTier(n.Days())
	return r.message(
		fmt.Sprintf("[%s] %s", tier.Label, alert.ExpiryTitle(host, n.Days())),
		n.base, ev.Message)
}

func (r Renderer) VisitSSLInvalid(n SSLInvalid) Message {
	host := hostOf(n.Event().MonitorURL)
	if n.Resolved() {
		return r.message(fmt.Sprintf("[RESOLVED] SSL certificate for %s is valid again", host), n.base, "")
	}
	return r.message(fmt.Sprintf("[CRITICAL] SSL certificate for %s is invalid", host), n.base, n.Event().Message)
}

func (r Renderer) VisitUptimeDown(n UptimeDown) Message {
	return r.message(fmt.Sprintf("[DOWN] %s is down", hostOf(n.Event().MonitorURL)), n.base, n.Event().Message)
}

func (r Renderer) VisitUptimeUp(n UptimeUp) Message {
	ev := n.Event()
	detail := ""
	if ev.ResolvedAt != nil && !ev.DetectedAt.IsZero() {
		detail = fmt.Sprintf("Downtime: %s.", ev.ResolvedAt.Sub(ev.DetectedAt).Round(time.Second))
	}
	return r.message(fmt.Sprintf("[UP] %s is back up", hostOf(ev.MonitorURL)), n.base, detail)
}

func (r Renderer) VisitPerformanceDegradation(n PerformanceDegradation) Message {
	host := hostOf(n.Event().MonitorURL)
	if n.Resolved() {
		return r.message(fmt.Sprintf("[RECOVERED] %s response times are back to normal", host), n.base, "")
	}
	return r.message(fmt.Sprintf("[SLOW] %s is responding slowly", host), n.base, n.Event().Message)
}

func (r Renderer) message(subject string, b base, detail string) Message {
	ev := b.ev
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", ev.Title)
	fmt.Fprintf(&sb, "Monitor: %s\n", ev.MonitorURL)
	fmt.Fprintf(&sb, "Severity: %s\n", ev.Severity)
	fmt.Fprintf(&sb, "Detected: %s\n", ev.DetectedAt.UTC().Format(time.RFC3339))
	if ev.ResolvedAt != nil {
		fmt.Fprintf(&sb, "Resolved: %s\n", ev.ResolvedAt.UTC().Format(time.RFC3339))
	}
	if detail != "" {
		fmt.Fprintf(&sb, "\n%s\n", detail)
	}
	sb.WriteString("\n-- Sitewatch")
	return Message{Subject: subject, Body: sb.String()}
}

func hostOf(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return raw
}
