package obs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func healthz(t *testing.T, checks map[string]HealthCheck) (int, HealthzReport) {
	t.Helper()
	srv := createMetricsServer(":0", checks, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var rep HealthzReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	return rec.Code, rep
}

func TestHealthz_ReportsEachDependency(t *testing.T) {
	code, rep := healthz(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"kafka":    func(context.Context) error { return errors.New("dial tcp 10.0.0.7:9094: connection refused") },
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", rep.Status)
	assert.Equal(t, "ok", rep.Checks["postgres"])
	assert.Equal(t, "dial tcp 10.0.0.7:9094: connection refused", rep.Checks["kafka"])
}

func TestHealthz_AllHealthy(t *testing.T) {
	code, rep := healthz(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, HealthzReport{Status: "ok", Checks: map[string]string{"postgres": "ok"}}, rep)
}

func TestHealthz_CheckDeadline(t *testing.T) {
	code, rep := healthz(t, map[string]HealthCheck{
		"kafka": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), rep.Checks["kafka"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := createMetricsServer(":0", nil, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
