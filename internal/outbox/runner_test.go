package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/domain/events"
	"github.com/NordCoder/Sitewatch/internal/domain/outbox"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
)

type memRepo struct {
	mu      sync.Mutex
	pending []outbox.Message
	done    []string
}

func (r *memRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data})
	return nil
}

func (r *memRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if batch > len(r.pending) {
		batch = len(r.pending)
	}
	out := append([]outbox.Message(nil), r.pending[:batch]...)
	r.pending = r.pending[batch:]
	return out, nil
}

func (r *memRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, keys...)
	return nil
}

type fakeChecks struct {
	completed []events.CheckCompleted
	err       error
}

func (f *fakeChecks) PublishCheckCompleted(_ context.Context, ev events.CheckCompleted) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, ev)
	return nil
}

func (f *fakeChecks) PublishCheckFailed(context.Context, events.CheckFailed) error { return nil }

type fakeAlerts struct{ raised, resolved []events.Alert }

func (f *fakeAlerts) PublishAlertRaised(_ context.Context, ev events.Alert) error {
	f.raised = append(f.raised, ev)
	return nil
}

func (f *fakeAlerts) PublishAlertResolved(_ context.Context, ev events.Alert) error {
	f.resolved = append(f.resolved, ev)
	return nil
}

func noRetry() retry.Policy {
	return retry.Policy{Name: "test", Attempts: 1, Backoff: retry.ExpoJitter{Base: time.Millisecond}}
}

func enqueueJSON(t *testing.T, r *memRepo, key string, kind outbox.Kind, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, r.Enqueue(context.Background(), key, kind, b))
}

func TestTick_DispatchesByKind(t *testing.T) {
	repo := &memRepo{}
	checks, alerts := &fakeChecks{}, &fakeAlerts{}
	enqueueJSON(t, repo, "c1", outbox.KindCheckCompleted, events.CheckCompleted{MonitorID: 7})
	enqueueJSON(t, repo, "a1", outbox.KindAlertRaised, events.Alert{MonitorID: 7, AlertType: "uptime_down"})
	enqueueJSON(t, repo, "a2", outbox.KindAlertResolved, events.Alert{MonitorID: 7, AlertType: "uptime_down"})

	r := NewOutboxRunner(zap.NewNop(), repo,
		MakeGlobalOutboxHandler(Publishers{Checks: checks, Alerts: alerts}, noRetry()),
		Config{BatchSize: 10})

	require.Equal(t, 3, r.Tick(context.Background()))
	assert.ElementsMatch(t, []string{"c1", "a1", "a2"}, repo.done)
	require.Len(t, checks.completed, 1)
	assert.EqualValues(t, 7, checks.completed[0].MonitorID)
	assert.Len(t, alerts.raised, 1)
	assert.Len(t, alerts.resolved, 1)
}

func TestTick_FailedRowsStayUnmarked(t *testing.T) {
	repo := &memRepo{}
	checks := &fakeChecks{err: errors.New("broker down")}
	enqueueJSON(t, repo, "c1", outbox.KindCheckCompleted, events.CheckCompleted{MonitorID: 1})
	enqueueJSON(t, repo, "a1", outbox.KindAlertRaised, events.Alert{MonitorID: 1})

	// the alerts publisher is not configured in this process
	r := NewOutboxRunner(zap.NewNop(), repo,
		MakeGlobalOutboxHandler(Publishers{Checks: checks}, noRetry()), Config{})

	assert.Equal(t, 0, r.Tick(context.Background()))
	assert.Empty(t, repo.done)
}

func TestGlobalHandler_BadPayload(t *testing.T) {
	h, err := MakeGlobalOutboxHandler(Publishers{Checks: &fakeChecks{}}, noRetry())(outbox.KindCheckCompleted)
	require.NoError(t, err)
	assert.Error(t, h(context.Background(), []byte("{")))
}
