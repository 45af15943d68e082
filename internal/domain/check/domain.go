package check

import (
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeUptime Type = "uptime"
	TypeSSL    Type = "ssl"
	TypeBoth   Type = "both"
)

func (t Type) IncludesUptime() bool { return t == TypeUptime || t == TypeBoth }
func (t Type) IncludesSSL() bool    { return t == TypeSSL || t == TypeBoth }

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeUptime, TypeSSL, TypeBoth:
		return t, nil
	default:
		return "", fmt.Errorf("unknown check type %q", s)
	}
}

// TypeFor combines the two check flags; ok is false when neither is set.
func TypeFor(uptime, ssl bool) (Type, bool) {
	switch {
	case uptime && ssl:
		return TypeBoth, true
	case uptime:
		return TypeUptime, true
	case ssl:
		return TypeSSL, true
	default:
		return "", false
	}
}

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

type UptimeStatus string

const (
	UptimePending UptimeStatus = "pending"
	UptimeUp      UptimeStatus = "up"
	UptimeDown    UptimeStatus = "down"
	UptimeSlow    UptimeStatus = "slow"
)

// Reachable reports whether the site answered acceptably, slow or not.
func (s UptimeStatus) Reachable() bool { return s == UptimeUp || s == UptimeSlow }

type SSLStatus string

const (
	SSLPending      SSLStatus = "pending"
	SSLValid        SSLStatus = "valid"
	SSLExpiringSoon SSLStatus = "expiring_soon"
	SSLExpired      SSLStatus = "expired"
	SSLInvalid      SSLStatus = "invalid"
	SSLError        SSLStatus = "error"
)

// Trusted reports whether the certificate is currently usable.
func (s SSLStatus) Trusted() bool { return s == SSLValid || s == SSLExpiringSoon }

// Request asks a worker to run a check for one monitor.
type Request struct {
	MonitorID   int64     `json:"monitor_id"`
	Type        Type      `json:"check_type"`
	Trigger     Trigger   `json:"trigger_type"`
	RequestedAt time.Time `json:"requested_at"`
}
