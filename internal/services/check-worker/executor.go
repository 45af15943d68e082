package check_worker

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	config "github.com/NordCoder/Sitewatch/internal/config/check-worker"
	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
)

// Target is everything a check needs to know about one monitor.
type Target struct {
	URL               string
	CheckUptime       bool
	CheckSSL          bool
	ExpectedStatus    int
	ExpectedContent   []string
	ForbiddenContent  []string
	ContentPatterns   []string
	JavaScriptEnabled bool
	JavaScriptWait    time.Duration
}

func TargetFor(m *monitor.Monitor, t check.Type) Target {
	return Target{
		URL:               m.URL,
		CheckUptime:       t.IncludesUptime(),
		CheckSSL:          t.IncludesSSL(),
		ExpectedStatus:    m.ExpectedStatusCode,
		ExpectedContent:   m.ExpectedContent,
		ForbiddenContent:  m.ForbiddenContent,
		ContentPatterns:   m.ContentPatterns,
		JavaScriptEnabled: m.JavaScriptEnabled,
		JavaScriptWait:    m.JavaScriptWait,
	}
}

type UptimeOutcome struct {
	Status        check.UptimeStatus
	StatusCode    int
	ResponseTime  time.Duration
	FinalURL      string
	RedirectCount int
	Error         string
}

type SSLOutcome struct {
	Status              check.SSLStatus
	Issuer              string
	Subject             string
	Serial              string
	ExpiresAt           time.Time
	DaysUntilExpiration int
	Error               string
}

// Outcome carries one result per requested check type; a nil field means the
// check was not requested.
type Outcome struct {
	Uptime   *UptimeOutcome
	SSL      *SSLOutcome
	Warnings []string
}

type Checker interface {
	Check(ctx context.Context, t Target) Outcome
}

type ExecutorConfig struct {
	Timeout          time.Duration
	MaxRedirects     int
	SlowThreshold    time.Duration
	ExpiringSoonDays int
	UserAgent        string
	VerifyTLS        bool
	MaxBodyBytes     int64
}

func NewExecutorConfig(http config.HTTPCheck, pol alert.Policy) ExecutorConfig {
	return ExecutorConfig{
		Timeout:          http.Timeout,
		MaxRedirects:     http.MaxRedirects,
		SlowThreshold:    pol.SlowResponse,
		ExpiringSoonDays: pol.ExpiringSoonDays,
		UserAgent:        http.UserAgent,
		VerifyTLS:        http.VerifyTLS,
		MaxBodyBytes:     http.MaxBodyBytes,
	}
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 5
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 5 * time.Second
	}
	if c.ExpiringSoonDays <= 0 {
		c.ExpiringSoonDays = 30
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 2 << 20
	}
	return c
}

var _ Checker = (*Executor)(nil)

// Executor runs HTTP and TLS checks. It never persists anything and turns
// every network fault into an outcome.
type Executor struct {
	cfg    ExecutorConfig
	client *http.Client
	now    func() time.Time
	// roots overrides the system pool for chain verification; nil means system roots.
	roots *x509.CertPool
}

func NewExecutor(cfg ExecutorConfig, client *http.Client) *Executor {
	return &Executor{cfg: cfg.withDefaults(), client: client, now: time.Now}
}

func (e *Executor) Check(ctx context.Context, t Target) Outcome {
	var (
		out Outcome
		wg  sync.WaitGroup
		mu  sync.Mutex
	)
	warn := func(w ...string) {
		mu.Lock()
		out.Warnings = append(out.Warnings, w...)
		mu.Unlock()
	}

	if t.JavaScriptEnabled {
		warn("javascript rendering is not performed; content rules ran against the served body")
	}

	if t.CheckUptime {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					out.Uptime = &UptimeOutcome{Status: check.UptimeDown, Error: fmt.Sprintf("check panic: %v", p)}
				}
			}()
			up, w := e.checkUptime(ctx, t)
			out.Uptime = up
			warn(w...)
		}()
	}
	if t.CheckSSL {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					out.SSL = &SSLOutcome{Status: check.SSLError, Error: fmt.Sprintf("check panic: %v", p)}
				}
			}()
			out.SSL = e.checkSSL(ctx, t)
		}()
	}
	wg.Wait()
	return out
}

func normalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	return "https://" + t
}
