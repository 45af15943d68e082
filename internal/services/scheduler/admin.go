package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/NordCoder/Sitewatch/internal/domain/audit"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
)

var ErrInvalidMonitor = errors.New("invalid monitor")

func validateMonitor(m *monitor.Monitor) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMonitor)
	}
	u, err := url.Parse(m.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalidMonitor, m.URL)
	}
	if !m.UptimeCheckEnabled && !m.CertificateCheckEnabled {
		return fmt.Errorf("%w: enable uptime or certificate checks", ErrInvalidMonitor)
	}
	if m.ExpectedStatusCode != 0 && (m.ExpectedStatusCode < 100 || m.ExpectedStatusCode > 599) {
		return fmt.Errorf("%w: expected status %d out of range", ErrInvalidMonitor, m.ExpectedStatusCode)
	}
	for _, p := range m.ContentPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: pattern %q: %v", ErrInvalidMonitor, p, err)
		}
	}
	return nil
}

// AddMonitor validates and stores a monitor, then records monitor_created.
func (u *Usecase) AddMonitor(ctx context.Context, m *monitor.Monitor, actor string) error {
	if err := validateMonitor(m); err != nil {
		return err
	}
	if err := u.Monitors.Create(ctx, m); err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}
	u.audit(ctx, &audit.Event{
		MonitorID: m.ID,
		Type:      audit.TypeMonitorCreated,
		Actor:     actor,
		Source:    audit.SourceCLI,
		Payload: map[string]any{
			"name":   m.Name,
			"url":    m.URL,
			"uptime": m.UptimeCheckEnabled,
			"ssl":    m.CertificateCheckEnabled,
		},
	})
	return nil
}

// UpdateMonitor applies p to an active monitor, validates the result and
// records monitor_updated with the changed field names.
func (u *Usecase) UpdateMonitor(ctx context.Context, id int64, p monitor.Patch, actor string) (*monitor.Monitor, error) {
	m, err := u.Monitors.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get monitor %d: %w", id, err)
	}
	if !m.Active() {
		return nil, fmt.Errorf("%w: monitor %d is disabled", ErrInvalidMonitor, id)
	}
	changed := p.Apply(m)
	if len(changed) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidMonitor)
	}
	if err := validateMonitor(m); err != nil {
		return nil, err
	}
	if err := u.Monitors.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update monitor %d: %w", id, err)
	}
	u.audit(ctx, &audit.Event{
		MonitorID: m.ID,
		Type:      audit.TypeMonitorUpdated,
		Actor:     actor,
		Source:    audit.SourceCLI,
		Payload:   map[string]any{"changed": changed},
	})
	return m, nil
}

func (u *Usecase) DisableMonitor(ctx context.Context, id int64, actor string) error {
	if err := u.Monitors.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("disable monitor %d: %w", id, err)
	}
	u.audit(ctx, &audit.Event{
		MonitorID: id,
		Type:      audit.TypeMonitorDisabled,
		Actor:     actor,
		Source:    audit.SourceCLI,
	})
	return nil
}

func (u *Usecase) ListMonitors(ctx context.Context, includeDisabled bool) ([]*monitor.Monitor, error) {
	return u.Monitors.List(ctx, includeDisabled)
}
