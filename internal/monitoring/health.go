package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const maxHealthErrors = 10

var startTime = time.Now()

type HealthChecker struct {
	mu              sync.RWMutex
	lastCycle       map[string]time.Time
	isConnected     bool
	emergencyActive bool
	emergencyReason string
	staleAfter      time.Duration
	errors          []string
	now             func() time.Time
}

type HealthStatus struct {
	Status          string               `json:"status"`
	Timestamp       time.Time            `json:"timestamp"`
	LastCycle       map[string]time.Time `json:"last_cycle"`
	IsConnected     bool                 `json:"is_connected"`
	EmergencyStop   bool                 `json:"emergency_stop"`
	EmergencyReason string               `json:"emergency_reason,omitempty"`
	Uptime          string               `json:"uptime"`
	Errors          []string             `json:"errors,omitempty"`
}

// NewHealthChecker reports degraded when no instrument completed a cycle
// within staleAfter.
func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &HealthChecker{
		lastCycle:   make(map[string]time.Time),
		isConnected: true,
		staleAfter:  staleAfter,
		errors:      make([]string, 0),
		now:         time.Now,
	}
}

// RecordCycle marks a completed cycle for an instrument
func (h *HealthChecker) RecordCycle(symbol string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle[symbol] = at
}

// SetConnected records gateway reachability
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// SetEmergencyStop mirrors the emergency stop state
func (h *HealthChecker) SetEmergencyStop(active bool, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emergencyActive = active
	h.emergencyReason = reason
}

// RecordError keeps the most recent errors
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > maxHealthErrors {
		h.errors = h.errors[len(h.errors)-maxHealthErrors:]
	}
}

// ClearErrors forgets recorded errors
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

// Status builds the current health report
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"

	fresh := false
	cycles := make(map[string]time.Time, len(h.lastCycle))
	for symbol, at := range h.lastCycle {
		cycles[symbol] = at
		if now.Sub(at) <= h.staleAfter {
			fresh = true
		}
	}
	if !h.isConnected || !fresh || h.emergencyActive {
		status = "degraded"
	}
	if len(h.errors) > 0 && !h.isConnected {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:          status,
		Timestamp:       now,
		LastCycle:       cycles,
		IsConnected:     h.isConnected,
		EmergencyStop:   h.emergencyActive,
		EmergencyReason: h.emergencyReason,
		Uptime:          time.Since(startTime).String(),
		Errors:          append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
