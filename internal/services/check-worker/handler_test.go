package check_worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	"github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time {
	c.t = c.t.Add(150 * time.Millisecond)
	return c.t
}

type fakeMonitors struct {
	monitor.Repo
	byID map[int64]*monitor.Monitor
	err  error
}

func (f *fakeMonitors) GetByID(_ context.Context, id int64) (*monitor.Monitor, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.byID[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return m, nil
}

type stubChecker struct {
	out     Outcome
	targets []Target
}

func (p *stubChecker) Check(_ context.Context, t Target) Outcome {
	p.targets = append(p.targets, t)
	return p.out
}

type memRecorder struct {
	mu      sync.Mutex
	results []*result.Result
	err     error
}

func (r *memRecorder) Record(_ context.Context, m *monitor.Monitor, req check.Request, typ check.Type, out Outcome, started, completed time.Time) (*result.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	res := BuildResult(m.ID, typ, req.Trigger, out, started, completed)
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	return res, nil
}

type countingRefresher struct {
	calls int
	at    []time.Time
}

func (c *countingRefresher) Refresh(_ context.Context, _ int64, t time.Time) error {
	c.calls++
	c.at = append(c.at, t)
	return errors.New("lock busy")
}

func newHandler(mons map[int64]*monitor.Monitor, out Outcome) (*Handler, *stubChecker, *memRecorder, *countingRefresher) {
	p := &stubChecker{out: out}
	rec := &memRecorder{}
	ref := &countingRefresher{}
	return &Handler{
		Log:       zap.NewNop(),
		Monitors:  &fakeMonitors{byID: mons},
		Checker:   p,
		Recorder:  rec,
		Summaries: ref,
		Clock:     &fixedClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
	}, p, rec, ref
}

func TestHandleCheck_Records(t *testing.T) {
	m := &monitor.Monitor{ID: 1, URL: "https://example.test", UptimeCheckEnabled: true, ExpectedContent: []string{"ok"}}
	h, p, rec, ref := newHandler(map[int64]*monitor.Monitor{1: m}, Outcome{
		Uptime: &UptimeOutcome{Status: check.UptimeUp, StatusCode: 200, ResponseTime: 120 * time.Millisecond},
	})

	err := h.HandleCheck(context.Background(), check.Request{MonitorID: 1, Type: check.TypeBoth, Trigger: check.TriggerManual})
	require.NoError(t, err)

	require.Len(t, p.targets, 1)
	assert.True(t, p.targets[0].CheckUptime)
	assert.False(t, p.targets[0].CheckSSL, "ssl is not enabled on the monitor")
	assert.Equal(t, []string{"ok"}, p.targets[0].ExpectedContent)

	require.Len(t, rec.results, 1)
	res := rec.results[0]
	assert.Equal(t, check.TypeUptime, res.CheckType)
	assert.Equal(t, check.TriggerManual, res.TriggerType)
	assert.Equal(t, result.StatusSuccess, res.Status)
	assert.EqualValues(t, 150, res.DurationMs)
	assert.Equal(t, 1, ref.calls, "refresh failures are logged, not returned")
}

func TestHandleCheck_RefreshesWindowCheckStartedIn(t *testing.T) {
	m := &monitor.Monitor{ID: 1, URL: "https://example.test", UptimeCheckEnabled: true}
	h, _, rec, ref := newHandler(map[int64]*monitor.Monitor{1: m}, Outcome{
		Uptime: &UptimeOutcome{Status: check.UptimeUp, StatusCode: 200, ResponseTime: 100 * time.Millisecond},
	})
	h.Clock = &fixedClock{t: time.Date(2025, 1, 1, 10, 59, 59, 800_000_000, time.UTC)}

	require.NoError(t, h.HandleCheck(context.Background(), check.Request{MonitorID: 1, Type: check.TypeUptime}))

	require.Len(t, rec.results, 1)
	res := rec.results[0]
	require.Equal(t, 10, res.StartedAt.Hour())
	require.Equal(t, 11, res.CompletedAt.Hour())

	require.Len(t, ref.at, 1)
	assert.Equal(t, res.StartedAt, ref.at[0])
	assert.Equal(t, 10, ref.at[0].Hour())
}

func TestHandleCheck_Skips(t *testing.T) {
	deleted := time.Now()
	mons := map[int64]*monitor.Monitor{
		1: {ID: 1, UptimeCheckEnabled: true, DeletedAt: &deleted},
		2: {ID: 2, UptimeCheckEnabled: true},
	}
	h, p, rec, _ := newHandler(mons, Outcome{})

	for _, req := range []check.Request{
		{MonitorID: 0, Type: check.TypeUptime},
		{MonitorID: 99, Type: check.TypeUptime},
		{MonitorID: 1, Type: check.TypeUptime},
		{MonitorID: 2, Type: check.TypeSSL},
	} {
		require.NoError(t, h.HandleCheck(context.Background(), req))
	}
	assert.Empty(t, p.targets)
	assert.Empty(t, rec.results)
}

func TestHandleCheck_InfraErrorsReturned(t *testing.T) {
	h, _, _, _ := newHandler(nil, Outcome{})
	h.Monitors = &fakeMonitors{err: errors.New("pool closed")}
	assert.Error(t, h.HandleCheck(context.Background(), check.Request{MonitorID: 1, Type: check.TypeUptime}))
}

type memFailures struct{ got []events.CheckFailed }

func (m *memFailures) PublishCheckFailed(_ context.Context, ev events.CheckFailed) error {
	m.got = append(m.got, ev)
	return nil
}

func TestController_ExhaustedRetriesPublishFailure(t *testing.T) {
	m := &monitor.Monitor{ID: 5, CertificateCheckEnabled: true}
	h, p, rec, _ := newHandler(map[int64]*monitor.Monitor{5: m}, Outcome{SSL: &SSLOutcome{Status: check.SSLValid}})
	rec.err = errors.New("insert result: connection reset")
	fails := &memFailures{}

	c := &Controller{
		Log:    zap.NewNop(),
		UC:     h,
		Events: fails,
		Policy: retry.JobPolicy("test", 3, time.Millisecond, time.Millisecond, nil),
		Clock:  h.Clock,
	}
	require.NoError(t, c.Handle(context.Background(), check.Request{MonitorID: 5, Type: check.TypeSSL, Trigger: check.TriggerScheduled}))

	assert.Len(t, p.targets, 3)
	require.Len(t, fails.got, 1)
	assert.EqualValues(t, 5, fails.got[0].MonitorID)
	assert.Equal(t, check.TypeSSL, fails.got[0].CheckType)
	assert.Contains(t, fails.got[0].Exception, "connection reset")
}

func TestBuildResult(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := start.Add(48 * time.Hour)

	res := BuildResult(3, check.TypeBoth, check.TriggerScheduled, Outcome{
		Uptime: &UptimeOutcome{Status: check.UptimeDown, Error: "dns lookup failed: x.invalid: no such host"},
		SSL: &SSLOutcome{
			Status: check.SSLExpiringSoon, Issuer: "R3", Subject: "x.invalid",
			ExpiresAt: expires, DaysUntilExpiration: 2,
		},
		Warnings: []string{"w"},
	}, start, start.Add(1499*time.Microsecond))

	assert.Equal(t, result.StatusError, res.Status)
	assert.EqualValues(t, 1, res.DurationMs)
	assert.Equal(t, "down", res.UptimeStatus.String)
	assert.False(t, res.HTTPStatusCode.Valid)
	assert.Equal(t, "expiring_soon", res.SSLStatus.String)
	assert.EqualValues(t, 2, res.DaysUntilExpiration.Int64)
	assert.Equal(t, expires, res.SSLExpiresAt.Time)
	assert.Equal(t, "dns lookup failed: x.invalid: no such host", res.ErrorMessage.String)
	assert.Equal(t, []string{"w"}, res.Warnings)

	res = BuildResult(3, check.TypeUptime, check.TriggerScheduled, Outcome{
		Uptime: &UptimeOutcome{Status: check.UptimeDown, StatusCode: 500, Error: "unexpected status 500"},
	}, start, start)
	assert.Equal(t, result.StatusFailed, res.Status)
	assert.EqualValues(t, 500, res.HTTPStatusCode.Int64)
	assert.False(t, res.SSLStatus.Valid)
}
