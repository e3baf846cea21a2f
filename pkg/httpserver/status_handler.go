package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// RunStatus is a snapshot of the daemon's current run.
type RunStatus struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"`
	StartedAt  int64  `json:"started_at"`
	Cycles     int64  `json:"cycles"`
	Signals    int64  `json:"signals"`
	LastCycle  int64  `json:"last_cycle"`
	BotEnabled bool   `json:"bot_enabled"`
}

// StatusSource reports the daemon's current run.
type StatusSource interface {
	RunStatus() RunStatus
}

// StatusHandler handles HTTP requests for run status.
type StatusHandler struct {
	source StatusSource
	logger *zap.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(source StatusSource, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		source: source,
		logger: logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleStatus handles GET /api/status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// Only allow GET requests
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.source.RunStatus()
	if status.RunID == "" {
		h.writeError(w, "no active run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(status)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *StatusHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
