package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheck is a named readiness probe.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one probe's outcome.
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	logger *zap.Logger
	checks []HealthCheck
	mu     sync.RWMutex
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger.With(zap.String("component", "health_handler")),
		checks: make([]HealthCheck, 0),
	}
}

// RegisterCheck adds a readiness probe.
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// HandleHealth serves the liveness endpoint.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// HandleReady serves the readiness endpoint, running all registered
// probes with a shared deadline.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult),
	}

	allHealthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{
			Status:  "pass",
			Latency: latency.String(),
		}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			allHealthy = false

			h.logger.Warn("readiness check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}
		status.Checks[check.Name()] = result
	}

	if !allHealthy {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion serves build metadata.
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// PingCheck adapts a ping function into a HealthCheck. Used for the
// database and the redis cache.
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck creates a named probe from a ping function.
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }
