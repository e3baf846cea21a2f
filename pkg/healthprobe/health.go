package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Probe provides health and readiness checks for the scanner daemon.
// Readiness flips to true once the first scan cycle completes; each
// subsequent cycle records a heartbeat so operators can tell a wedged
// loop apart from a healthy one.
type Probe struct {
	startTime time.Time
	ready     atomic.Bool
	lastCycle atomic.Int64 // unix seconds of the most recent completed cycle
}

// New creates a new Probe.
func New() *Probe {
	return &Probe{
		startTime: time.Now(),
	}
}

// SetReady marks the daemon as ready to serve traffic.
func (p *Probe) SetReady(ready bool) {
	p.ready.Store(ready)
}

// Beat records a completed scan cycle.
func (p *Probe) Beat() {
	p.lastCycle.Store(time.Now().Unix())
}

// Response is the body returned by the health and readiness endpoints.
type Response struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	LastCycle int64  `json:"last_cycle,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the process is running.
func (p *Probe) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := Response{
			Status:    "healthy",
			Uptime:    time.Since(p.startTime).String(),
			LastCycle: p.lastCycle.Load(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK once the first scan cycle has completed, 503 before.
func (p *Probe) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.ready.Load() {
			resp := Response{
				Status:  "not_ready",
				Message: "waiting for first scan cycle",
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := Response{
			Status:    "ready",
			Uptime:    time.Since(p.startTime).String(),
			LastCycle: p.lastCycle.Load(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
