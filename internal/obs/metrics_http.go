package obs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthzTimeout = time.Second

// HealthzReport is the /healthz body: "ok" or the error text per dependency.
type HealthzReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func BootstrapMetricsServer(addr string, checks map[string]HealthCheck, l *zap.Logger) *http.Server {
	ms := createMetricsServer(addr, checks, l)

	go func() {
		l.Info("metrics listening", zap.String("addr", addr), zap.Int("health_checks", len(checks)))
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server error", zap.Error(err))
		}
	}()

	return ms
}

func createMetricsServer(addr string, checks map[string]HealthCheck, l *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthzTimeout)
		defer cancel()

		rep := runHealthChecks(ctx, checks)
		code := http.StatusOK
		if rep.Status != "ok" {
			code = http.StatusServiceUnavailable
			l.Warn("healthz failing", zap.Any("checks", rep.Checks))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(rep)
	})
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

// runHealthChecks evaluates every health check concurrently under ctx.
func runHealthChecks(ctx context.Context, checks map[string]HealthCheck) HealthzReport {
	rep := HealthzReport{Status: "ok", Checks: make(map[string]string, len(checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, p := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := "ok"
			if err := p(ctx); err != nil {
				msg = err.Error()
			}
			mu.Lock()
			rep.Checks[name] = msg
			if msg != "ok" {
				rep.Status = "unhealthy"
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return rep
}
