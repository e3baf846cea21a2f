// Package botctl is the file-backed control plane. The daemon polls the
// state file to pick up live-tuning changes without a restart; the ctl
// command mutates it with the write-temp-then-rename discipline.
package botctl

import (
	"fmt"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Trading modes the control plane can select.
const (
	ModeOff    = "off"
	ModeAlerts = "alerts"
	ModePaper  = "paper"
)

// State is the control-plane file contents. A default state is disabled with
// mode off, so a fresh deployment never paper-trades until an operator turns
// it on.
type State struct {
	Enabled     bool    `json:"enabled"`
	Mode        string  `json:"mode"`
	Bankroll    float64 `json:"bankroll"`
	MaxPerTrade float64 `json:"max_per_trade"`
	MinBufEdge  float64 `json:"min_buf_edge"`
	UpdatedAt   int64   `json:"updated_at"`
}

// Defaults returns the state used before any operator write exists.
// minBufEdge follows the configured alert threshold.
func Defaults(minBufEdge float64) State {
	return State{
		Enabled:     false,
		Mode:        ModeOff,
		Bankroll:    1000,
		MaxPerTrade: 50,
		MinBufEdge:  minBufEdge,
		UpdatedAt:   0,
	}
}

// ValidMode reports whether mode is one of the recognized trading modes.
func ValidMode(mode string) bool {
	return mode == ModeOff || mode == ModeAlerts || mode == ModePaper
}

// Read loads the control-plane file. A missing file returns the defaults
// without error.
func Read(path string, defaults State) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("read botctl %s: %w", path, err)
	}

	// Merge over defaults so partial files keep sane values.
	state := defaults
	if err := json.Unmarshal(data, &state); err != nil {
		return defaults, fmt.Errorf("parse botctl %s: %w", path, err)
	}
	if !ValidMode(state.Mode) {
		return defaults, fmt.Errorf("botctl %s: invalid mode %q", path, state.Mode)
	}

	return state, nil
}

// Write persists the state atomically and stamps updated_at.
func Write(path string, state State) error {
	state.UpdatedAt = time.Now().Unix()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode botctl: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write botctl %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename botctl %s: %w", path, err)
	}
	return nil
}

// Update reads the current state, applies mutate, and writes the result
// atomically. Used by the ctl subcommands.
func Update(path string, defaults State, mutate func(*State)) (State, error) {
	state, err := Read(path, defaults)
	if err != nil {
		return defaults, err
	}

	mutate(&state)
	if !ValidMode(state.Mode) {
		return defaults, fmt.Errorf("invalid mode %q", state.Mode)
	}

	if err := Write(path, state); err != nil {
		return defaults, err
	}
	return state, nil
}

// Reader polls the control-plane file at a bounded rate and keeps the last
// known good state across transient read failures.
type Reader struct {
	path     string
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	lastPoll time.Time
}

// NewReader creates a control-plane reader seeded with the defaults.
func NewReader(path string, defaults State, pollInterval time.Duration, logger *zap.Logger) *Reader {
	if pollInterval < 2*time.Second {
		pollInterval = 2 * time.Second
	}

	return &Reader{
		path:     path,
		interval: pollInterval,
		logger:   logger,
		state:    defaults,
	}
}

// Current returns the control-plane state, re-reading the file when the poll
// interval has elapsed. A failed read keeps the previous state.
func (r *Reader) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if !r.lastPoll.IsZero() && now.Sub(r.lastPoll) < r.interval {
		return r.state
	}
	r.lastPoll = now

	state, err := Read(r.path, r.state)
	if err != nil {
		r.logger.Warn("botctl-read-failed", zap.Error(err))
		return r.state
	}

	r.state = state
	return r.state
}
