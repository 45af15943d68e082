package correlator

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
)

type Action int

const (
	Raise Action = iota + 1
	Resolve
)

func (a Action) String() string {
	if a == Raise {
		return "raise"
	}
	return "resolve"
}

// Decision is one alert state change derived from stored results.
type Decision struct {
	Action   Action
	Type     alert.Type
	Severity alert.Severity
	Title    string
	Message  string
	Days     *int
	Trigger  map[string]any
}

func resolve(t alert.Type) Decision { return Decision{Action: Resolve, Type: t} }

// SSLDecisions derives certificate alerts from one result. An SSL error
// (unreachable host) changes nothing.
func SSLDecisions(pol alert.Policy, host string, r *result.Result) []Decision {
	if !r.HasSSL() {
		return nil
	}
	switch r.SSL() {
	case check.SSLExpired, check.SSLExpiringSoon:
		days := int(r.DaysUntilExpiration.Int64)
		tier := pol.SSLTier(days)
		msg := fmt.Sprintf("[%s] certificate for %s", tier.Label, host)
		if r.SSLExpiresAt.Valid {
			msg += " expires at " + r.SSLExpiresAt.Time.UTC().Format(time.RFC3339)
		}
		if r.SSLIssuer.Valid {
			msg += fmt.Sprintf(" (issuer %s)", r.SSLIssuer.String)
		}
		out := []Decision{{
			Action:   Raise,
			Type:     alert.TypeSSLExpiring,
			Severity: tier.Severity,
			Title:    alert.ExpiryTitle(host, days),
			Message:  msg,
			Days:     &days,
			Trigger:  map[string]any{"days_until_expiration": days, "ssl_status": string(r.SSL())},
		}}
		// an expiring certificate passed chain verification
		if r.SSL() == check.SSLExpiringSoon {
			out = append(out, resolve(alert.TypeSSLInvalid))
		}
		return out
	case check.SSLInvalid:
		return []Decision{{
			Action:   Raise,
			Type:     alert.TypeSSLInvalid,
			Severity: alert.SeverityCritical,
			Title:    fmt.Sprintf("SSL certificate for %s is invalid", host),
			Message:  r.ErrorMessage.String,
			Trigger:  map[string]any{"ssl_status": string(r.SSL()), "error": r.ErrorMessage.String},
		}}
	case check.SSLValid:
		return []Decision{resolve(alert.TypeSSLExpiring), resolve(alert.TypeSSLInvalid)}
	}
	return nil
}

// UptimeDecisions derives availability and performance alerts from the
// newest uptime results, newest first.
func UptimeDecisions(pol alert.Policy, host string, recent []*result.Result) []Decision {
	if len(recent) == 0 {
		return nil
	}
	var out []Decision
	latest := recent[0].Uptime()

	switch {
	case streak(recent, check.UptimeDown, pol.ConsecutiveFailures):
		trigger := map[string]any{"consecutive_failures": pol.ConsecutiveFailures}
		if code := recent[0].HTTPStatusCode; code.Valid {
			trigger["http_status_code"] = code.Int64
		}
		out = append(out, Decision{
			Action:   Raise,
			Type:     alert.TypeUptimeDown,
			Severity: alert.SeverityCritical,
			Title:    fmt.Sprintf("%s is down", host),
			Message: fmt.Sprintf("%d consecutive checks failed; last error: %s",
				pol.ConsecutiveFailures, orDefault(recent[0].ErrorMessage.String, "unknown")),
			Trigger: trigger,
		})
	case latest.Reachable():
		out = append(out, resolve(alert.TypeUptimeDown))
	}

	switch {
	case streak(recent, check.UptimeSlow, pol.SlowStreak):
		avg := averageResponse(recent[:pol.SlowStreak])
		out = append(out, Decision{
			Action:   Raise,
			Type:     alert.TypePerformanceDegradation,
			Severity: alert.SeverityWarning,
			Title:    fmt.Sprintf("%s is responding slowly", host),
			Message: fmt.Sprintf("%d consecutive checks slower than %s (average %dms)",
				pol.SlowStreak, pol.SlowResponse, avg),
			Trigger: map[string]any{"slow_streak": pol.SlowStreak, "average_response_time_ms": avg},
		})
	case latest == check.UptimeUp:
		out = append(out, resolve(alert.TypePerformanceDegradation))
	}
	return out
}

func streak(recent []*result.Result, st check.UptimeStatus, n int) bool {
	if n <= 0 || len(recent) < n {
		return false
	}
	for _, r := range recent[:n] {
		if r.Uptime() != st {
			return false
		}
	}
	return true
}

func averageResponse(rs []*result.Result) int64 {
	var sum, n int64
	for _, r := range rs {
		if r.ResponseTimeMs.Valid {
			sum += r.ResponseTimeMs.Int64
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
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

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
