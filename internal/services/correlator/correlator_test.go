package correlator

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/domain/outbox"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type inlineTx struct{}

func (inlineTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type noLock struct{}

func (noLock) LockKey(context.Context, string) error { return nil }

type clock struct{ t time.Time }

func (c clock) Now() time.Time { return c.t }

type memResults struct {
	result.Repo
	rows []*result.Result
}

func (m *memResults) GetByID(_ context.Context, id uuid.UUID) (*result.Result, error) {
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *memResults) RecentUptime(_ context.Context, id int64, limit int) ([]*result.Result, error) {
	var out []*result.Result
	for _, r := range m.rows {
		if r.MonitorID == id && r.HasUptime() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memMonitors struct {
	monitor.Repo
	m *monitor.Monitor
}

func (f *memMonitors) GetByID(_ context.Context, id int64) (*monitor.Monitor, error) {
	if f.m == nil || f.m.ID != id {
		return nil, postgres.ErrNotFound
	}
	return f.m, nil
}

// memAlerts enforces the one-open-alert-per-type rule like the partial index.
type memAlerts struct {
	mu   sync.Mutex
	rows []*alert.Alert
}

func (m *memAlerts) GetUnresolved(_ context.Context, id int64, t alert.Type) (*alert.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.MonitorID == id && a.Type == t && a.Unresolved() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *memAlerts) Create(_ context.Context, a *alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.rows {
		if x.MonitorID == a.MonitorID && x.Type == a.Type && x.Unresolved() {
			return postgres.ErrConflict
		}
	}
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memAlerts) Resolve(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.ID == id && a.Unresolved() {
			a.ResolvedAt = &at
			return nil
		}
	}
	return postgres.ErrNotFound
}

func (m *memAlerts) Acknowledge(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, a := range m.rows {
		if a.ID == id {
			a.AcknowledgedAt = &at
			return nil
		}
	}
	return postgres.ErrNotFound
}

func (m *memAlerts) ListUnresolved(context.Context, int64) ([]*alert.Alert, error) { return nil, nil }

type memOutbox struct {
	kinds []outbox.Kind
	data  [][]byte
}

func (m *memOutbox) Enqueue(_ context.Context, _ string, kind outbox.Kind, data []byte) error {
	m.kinds = append(m.kinds, kind)
	m.data = append(m.data, data)
	return nil
}

func (m *memOutbox) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	return nil, nil
}

func (m *memOutbox) MarkSuccess(context.Context, []string) error { return nil }

type fixture struct {
	c       *Correlator
	results *memResults
	alerts  *memAlerts
	outbox  *memOutbox
	at      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		results: &memResults{},
		alerts:  &memAlerts{},
		outbox:  &memOutbox{},
		at:      time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	f.c = &Correlator{
		Log:        zap.NewNop(),
		Results:    f.results,
		Monitors:   &memMonitors{m: &monitor.Monitor{ID: 9, URL: "https://shop.example.com/health"}},
		Alerts:     f.alerts,
		Outbox:     f.outbox,
		Locker:     noLock{},
		Transactor: inlineTx{},
		Policy:     alert.DefaultPolicy(),
		Clock:      clock{t: f.at},
	}
	return f
}

func (f *fixture) record(t *testing.T, r *result.Result) {
	t.Helper()
	f.at = f.at.Add(time.Minute)
	r.ID = uuid.New()
	r.MonitorID = 9
	r.CompletedAt = f.at
	f.results.rows = append(f.results.rows, r)
	require.NoError(t, f.c.HandleCheckCompleted(context.Background(), events.CompletedFrom(r)))
}

func sslResult(days int64) *result.Result {
	st := check.SSLExpiringSoon
	if days > 30 {
		st = check.SSLValid
	}
	return &result.Result{
		CheckType:           check.TypeSSL,
		SSLStatus:           null.StringFrom(string(st)),
		DaysUntilExpiration: null.IntFrom(days),
	}
}

func uptimeResult(st check.UptimeStatus) *result.Result {
	return &result.Result{
		CheckType:      check.TypeUptime,
		UptimeStatus:   null.StringFrom(string(st)),
		ResponseTimeMs: null.IntFrom(6000),
		ErrorMessage:   null.NewString("connection refused", st == check.UptimeDown),
	}
}

func TestSSLExpiry_OneAlertPerEpisode(t *testing.T) {
	f := newFixture()

	f.record(t, sslResult(2))
	require.Len(t, f.alerts.rows, 1)
	a := f.alerts.rows[0]
	assert.Equal(t, alert.TypeSSLExpiring, a.Type)
	assert.Equal(t, alert.SeverityCritical, a.Severity)
	assert.Equal(t, "SSL certificate for shop.example.com expires in 2 days", a.Title)

	f.record(t, sslResult(1))
	assert.Len(t, f.alerts.rows, 1, "still one unresolved alert")

	f.record(t, sslResult(365))
	require.NotNil(t, f.alerts.rows[0].ResolvedAt)
	assert.Equal(t, []outbox.Kind{outbox.KindAlertRaised, outbox.KindAlertResolved}, f.outbox.kinds)

	var ev events.Alert
	require.NoError(t, json.Unmarshal(f.outbox.data[0], &ev))
	assert.Equal(t, a.ID, ev.AlertID)
	assert.Equal(t, "https://shop.example.com/health", ev.MonitorURL)
	require.NotNil(t, ev.DaysUntilExpiration)
	assert.Equal(t, 2, *ev.DaysUntilExpiration)
}

func TestUptimeDown_AfterConsecutiveFailures(t *testing.T) {
	f := newFixture()

	f.record(t, uptimeResult(check.UptimeDown))
	f.record(t, uptimeResult(check.UptimeDown))
	assert.Empty(t, f.alerts.rows)

	f.record(t, uptimeResult(check.UptimeDown))
	f.record(t, uptimeResult(check.UptimeDown))
	require.Len(t, f.alerts.rows, 1)
	assert.Equal(t, alert.TypeUptimeDown, f.alerts.rows[0].Type)
	assert.Equal(t, alert.SeverityCritical, f.alerts.rows[0].Severity)
	assert.Contains(t, f.alerts.rows[0].Message, "connection refused")

	f.record(t, uptimeResult(check.UptimeUp))
	assert.NotNil(t, f.alerts.rows[0].ResolvedAt)
}

func TestPerformanceDegradation(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.record(t, uptimeResult(check.UptimeSlow))
	}
	require.Len(t, f.alerts.rows, 1)
	assert.Equal(t, alert.TypePerformanceDegradation, f.alerts.rows[0].Type)
	assert.Equal(t, alert.SeverityWarning, f.alerts.rows[0].Severity)
	assert.EqualValues(t, 6000, f.alerts.rows[0].TriggerValue["average_response_time_ms"])

	f.record(t, uptimeResult(check.UptimeUp))
	assert.NotNil(t, f.alerts.rows[0].ResolvedAt)
}

func TestResultNotVisible_Skips(t *testing.T) {
	f := newFixture()
	err := f.c.HandleCheckCompleted(context.Background(), events.CheckCompleted{MonitorID: 9, ResultID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, f.alerts.rows)
	assert.Empty(t, f.outbox.kinds)
}

func TestAcknowledge(t *testing.T) {
	f := newFixture()
	f.record(t, &result.Result{
		CheckType:    check.TypeSSL,
		SSLStatus:    null.StringFrom(string(check.SSLInvalid)),
		ErrorMessage: null.StringFrom("x509: certificate signed by unknown authority"),
	})
	require.Len(t, f.alerts.rows, 1)
	assert.Equal(t, "SSL certificate for shop.example.com is invalid", f.alerts.rows[0].Title)

	require.NoError(t, f.c.Acknowledge(context.Background(), f.alerts.rows[0].ID))
	assert.NotNil(t, f.alerts.rows[0].AcknowledgedAt)
	assert.Nil(t, f.alerts.rows[0].ResolvedAt)
	assert.ErrorIs(t, f.c.Acknowledge(context.Background(), uuid.New()), postgres.ErrNotFound)
}
