package alert

import (
	"fmt"
	"time"
)

type SSLTiers struct {
	Critical int `mapstructure:"critical"`
	Urgent   int `mapstructure:"urgent"`
	Warning  int `mapstructure:"warning"`
}

// Policy holds every alerting threshold. Executor, correlator and notifier
// all read the same instance.
type Policy struct {
	ExpiringSoonDays    int           `mapstructure:"expiring_soon_days"`
	SSLTiers            SSLTiers      `mapstructure:"ssl_tiers"`
	ConsecutiveFailures int           `mapstructure:"consecutive_failures"`
	SlowStreak          int           `mapstructure:"slow_streak"`
	SlowResponse        time.Duration `mapstructure:"slow_response"`
}

func DefaultPolicy() Policy {
	return Policy{
		ExpiringSoonDays:    30,
		SSLTiers:            SSLTiers{Critical: 3, Urgent: 7, Warning: 14},
		ConsecutiveFailures: 3,
		SlowStreak:          3,
		SlowResponse:        5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.ExpiringSoonDays <= 0 {
		p.ExpiringSoonDays = d.ExpiringSoonDays
	}
	if p.SSLTiers.Critical <= 0 {
		p.SSLTiers.Critical = d.SSLTiers.Critical
	}
	if p.SSLTiers.Urgent <= 0 {
		p.SSLTiers.Urgent = d.SSLTiers.Urgent
	}
	if p.SSLTiers.Warning <= 0 {
		p.SSLTiers.Warning = d.SSLTiers.Warning
	}
	if p.ConsecutiveFailures <= 0 {
		p.ConsecutiveFailures = d.ConsecutiveFailures
	}
	if p.SlowStreak <= 0 {
		p.SlowStreak = d.SlowStreak
	}
	if p.SlowResponse <= 0 {
		p.SlowResponse = d.SlowResponse
	}
	return p
}

type Tier struct {
	Severity Severity
	Label    string
}

// SSLTier maps days until expiry to a severity. Negative days mean the
// certificate has already expired.
func (p Policy) SSLTier(days int) Tier {
	switch {
	case days < 0:
		return Tier{Severity: SeverityCritical, Label: "EXPIRED"}
	case days <= p.SSLTiers.Critical:
		return Tier{Severity: SeverityCritical, Label: "CRITICAL"}
	case days <= p.SSLTiers.Urgent:
		return Tier{Severity: SeverityUrgent, Label: "URGENT"}
	case days <= p.SSLTiers.Warning:
		return Tier{Severity: SeverityWarning, Label: "WARNING"}
	default:
		return Tier{Severity: SeverityInfo, Label: "NOTICE"}
	}
}

func ExpiryTitle(host string, days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("SSL certificate for %s has expired", host)
	case days == 0:
		return fmt.Sprintf("SSL certificate for %s expires today", host)
	case days == 1:
		return fmt.Sprintf("SSL certificate for %s expires tomorrow", host)
	default:
		return fmt.Sprintf("SSL certificate for %s expires in %d days", host, days)
	}
}
