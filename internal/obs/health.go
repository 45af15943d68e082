package obs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthCheck reports nil while a dependency is usable.
type HealthCheck func(ctx context.Context) error

// HealthReporter evaluates named health checks on an interval and publishes their
// state on a gRPC health server. The empty service name is the overall status.
type HealthReporter struct {
	srv      *health.Server
	log      *zap.Logger
	interval time.Duration

	mu     sync.RWMutex
	checks map[string]HealthCheck
	last   map[string]error
}

func NewHealthReporter(interval time.Duration, log *zap.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{
		srv:      srv,
		log:      log.With(zap.String("component", "obs.health")),
		interval: interval,
		checks:   map[string]HealthCheck{},
		last:     map[string]error{},
	}
}

func (h *HealthReporter) Register(service string, p HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[service] = p
	h.srv.SetServingStatus(service, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
}

func (h *HealthReporter) Server() *health.Server { return h.srv }

// Run evaluates health checks until ctx is done, then marks everything not serving.
func (h *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Evaluate(ctx)
		}
	}
}

// Evaluate runs every health check once and updates the published statuses.
func (h *HealthReporter) Evaluate(ctx context.Context) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		h.mu.RLock()
		hc := h.checks[name]
		h.mu.RUnlock()

		pctx, cancel := context.WithTimeout(ctx, h.interval/2)
		err := hc(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.srv.SetServingStatus(name, status)

		h.mu.Lock()
		prev, seen := h.last[name]
		h.last[name] = err
		h.mu.Unlock()
		if !seen || (prev == nil) != (err == nil) {
			if err != nil {
				h.log.Warn("dependency unhealthy", zap.String("service", name), zap.Error(err))
			} else {
				h.log.Info("dependency healthy", zap.String("service", name))
			}
		}
	}
	h.srv.SetServingStatus("", overall)
}

// Check returns the joined errors of the last evaluation.
func (h *HealthReporter) Check(context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.last) == 0 && len(h.checks) > 0 {
		return errors.New("health not evaluated yet")
	}
	var errs []error
	for name, err := range h.last {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Heartbeat records the last successful run of a periodic task.
type Heartbeat struct {
	last atomic.Int64
}

func (b *Heartbeat) Beat(t time.Time) { b.last.Store(t.UnixNano()) }

// Check fails when no beat arrived within maxAge of now.
func (b *Heartbeat) Check(maxAge time.Duration, now func() time.Time) HealthCheck {
	return func(context.Context) error {
		last := b.last.Load()
		if last == 0 {
			return errors.New("no heartbeat yet")
		}
		if age := now().Sub(time.Unix(0, last)); age > maxAge {
			return fmt.Errorf("last heartbeat %s ago", age.Truncate(time.Second))
		}
		return nil
	}
}
