package daemon

import "time"

// CooldownTracker enforces at most one successful execution per direction
// key per window. In-memory only: a restart clears cooldowns, which is
// acceptable for a paper ledger.
type CooldownTracker struct {
	window time.Duration
	last   map[string]time.Time
}

// NewCooldownTracker creates a tracker with the given window.
func NewCooldownTracker(window time.Duration) *CooldownTracker {
	return &CooldownTracker{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Ready reports whether the key is outside its cooldown window at now.
func (c *CooldownTracker) Ready(key string, now time.Time) bool {
	last, ok := c.last[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= c.window
}

// Mark records a successful execution for the key.
func (c *CooldownTracker) Mark(key string, now time.Time) {
	c.last[key] = now
}
