package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks liveness signals from the trading loop and serves
// them as JSON. A cycle older than two intervals marks the agent degraded.
type HealthChecker struct {
	mu            sync.RWMutex
	lastCycle     time.Time
	lastError     string
	cycleInterval time.Duration
	halted        bool
}

// HealthStatus is the payload served on the health endpoint.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastCycle time.Time `json:"last_cycle"`
	Halted    bool      `json:"halted"`
	Uptime    string    `json:"uptime"`
	LastError string    `json:"last_error,omitempty"`
}

// NewHealthChecker creates a checker expecting one cycle per interval.
func NewHealthChecker(cycleInterval time.Duration) *HealthChecker {
	return &HealthChecker{cycleInterval: cycleInterval}
}

// CycleCompleted marks a finished trading cycle.
func (h *HealthChecker) CycleCompleted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.lastError = ""
}

// ReportError records the most recent cycle error.
func (h *HealthChecker) ReportError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastError = err.Error()
}

// SetHalted marks the agent as intentionally stopped.
func (h *HealthChecker) SetHalted(halted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = halted
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK

	stale := !h.lastCycle.IsZero() && time.Since(h.lastCycle) > 2*h.cycleInterval
	if stale || h.lastError != "" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if h.halted {
		status = "halted"
		code = http.StatusServiceUnavailable
	}

	health := HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		LastCycle: h.lastCycle,
		Halted:    h.halted,
		Uptime:    time.Since(startTime).String(),
		LastError: h.lastError,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
