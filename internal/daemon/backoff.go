package daemon

import (
	"math"
	"math/rand"
	"time"
)

// Backoff is the daemon's outer-loop retry policy: exponential with uniform
// jitter, reset on the first successful iteration.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
	Jitter float64

	attempt int
	rng     *rand.Rand
}

// NewBackoff creates a backoff policy with the standard jitter of 20%.
func NewBackoff(base, cap time.Duration) *Backoff {
	return &Backoff{
		Base:   base,
		Factor: 2,
		Cap:    cap,
		Jitter: 0.20,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reset clears the attempt counter after a successful iteration.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns how many consecutive failures have been seen.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// NextSleep returns the delay before the next retry and advances the attempt
// counter. d = min(cap, base * factor^attempt), jittered by ±Jitter.
func (b *Backoff) NextSleep() time.Duration {
	delay := time.Duration(math.Min(
		float64(b.Cap),
		float64(b.Base)*math.Pow(b.Factor, float64(b.attempt)),
	))
	b.attempt++

	if b.Jitter > 0 {
		wiggle := float64(delay) * b.Jitter
		delay += time.Duration((b.rng.Float64()*2 - 1) * wiggle)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}
