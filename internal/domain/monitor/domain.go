package monitor

import (
	"slices"
	"time"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
)

type Monitor struct {
	ID                      int64              `json:"id"`
	Name                    string             `json:"name"`
	URL                     string             `json:"url"`
	UptimeCheckEnabled      bool               `json:"uptime_check_enabled"`
	CertificateCheckEnabled bool               `json:"certificate_check_enabled"`
	CheckInterval           time.Duration      `json:"check_interval"`
	JavaScriptEnabled       bool               `json:"javascript_enabled"`
	JavaScriptWait          time.Duration      `json:"javascript_wait"`
	ExpectedStatusCode      int                `json:"expected_status_code"`
	ExpectedContent         []string           `json:"expected_content"`
	ForbiddenContent        []string           `json:"forbidden_content"`
	ContentPatterns         []string           `json:"content_patterns"`
	UptimeStatus            check.UptimeStatus `json:"uptime_status"`
	SSLStatus               check.SSLStatus    `json:"ssl_status"`
	LastCheckedAt           *time.Time         `json:"last_checked_at"`
	NextRun                 time.Time          `json:"next_run"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
	DeletedAt               *time.Time         `json:"deleted_at"`
}

func (m *Monitor) Active() bool { return m.DeletedAt == nil }

// Effective narrows a requested check type to the check types this monitor has enabled.
func (m *Monitor) Effective(requested check.Type) (check.Type, bool) {
	return check.TypeFor(
		requested.IncludesUptime() && m.UptimeCheckEnabled,
		requested.IncludesSSL() && m.CertificateCheckEnabled,
	)
}

// Patch carries the fields an update changes; nil fields are left alone.
type Patch struct {
	Name                    *string
	URL                     *string
	UptimeCheckEnabled      *bool
	CertificateCheckEnabled *bool
	CheckInterval           *time.Duration
	JavaScriptEnabled       *bool
	JavaScriptWait          *time.Duration
	ExpectedStatusCode      *int
	ExpectedContent         *[]string
	ForbiddenContent        *[]string
	ContentPatterns         *[]string
}

// Apply writes the set fields onto m and returns the names of those that
// actually changed.
func (p Patch) Apply(m *Monitor) []string {
	var changed []string
	set := func(name string, differs bool, assign func()) {
		if differs {
			assign()
			changed = append(changed, name)
		}
	}
	if p.Name != nil {
		set("name", *p.Name != m.Name, func() { m.Name = *p.Name })
	}
	if p.URL != nil {
		set("url", *p.URL != m.URL, func() { m.URL = *p.URL })
	}
	if p.UptimeCheckEnabled != nil {
		set("uptime_check_enabled", *p.UptimeCheckEnabled != m.UptimeCheckEnabled, func() { m.UptimeCheckEnabled = *p.UptimeCheckEnabled })
	}
	if p.CertificateCheckEnabled != nil {
		set("certificate_check_enabled", *p.CertificateCheckEnabled != m.CertificateCheckEnabled, func() { m.CertificateCheckEnabled = *p.CertificateCheckEnabled })
	}
	if p.CheckInterval != nil {
		set("check_interval", *p.CheckInterval != m.CheckInterval, func() { m.CheckInterval = *p.CheckInterval })
	}
	if p.JavaScriptEnabled != nil {
		set("javascript_enabled", *p.JavaScriptEnabled != m.JavaScriptEnabled, func() { m.JavaScriptEnabled = *p.JavaScriptEnabled })
	}
	if p.JavaScriptWait != nil {
		set("javascript_wait", *p.JavaScriptWait != m.JavaScriptWait, func() { m.JavaScriptWait = *p.JavaScriptWait })
	}
	if p.ExpectedStatusCode != nil {
		set("expected_status_code", *p.ExpectedStatusCode != m.ExpectedStatusCode, func() { m.ExpectedStatusCode = *p.ExpectedStatusCode })
	}
	if p.ExpectedContent != nil {
		set("expected_content", !slices.Equal(*p.ExpectedContent, m.ExpectedContent), func() { m.ExpectedContent = *p.ExpectedContent })
	}
	if p.ForbiddenContent != nil {
		set("forbidden_content", !slices.Equal(*p.ForbiddenContent, m.ForbiddenContent), func() { m.ForbiddenContent = *p.ForbiddenContent })
	}
	if p.ContentPatterns != nil {
		set("content_patterns", !slices.Equal(*p.ContentPatterns, m.ContentPatterns), func() { m.ContentPatterns = *p.ContentPatterns })
	}
	return changed
}
