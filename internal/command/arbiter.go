package command

import (
	"sync"
	"time"

	"github.com/ayusman/robowave/internal/gesture"
)

// DefaultCooldown is the minimum spacing between two non-reset sends.
const DefaultCooldown = 2500 * time.Millisecond

// Arbiter decides whether a classified gesture may be sent now. RESET is
// never held back; every other gesture waits out the cooldown since the
// previous send of any kind. It is safe for concurrent use.
type Arbiter struct {
	cooldown time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

// NewArbiter creates an arbiter with the given cooldown.
func NewArbiter(cooldown time.Duration) *Arbiter {
	return &Arbiter{cooldown: cooldown}
}

// Ready reports whether sym may be sent at now without changing state.
func (a *Arbiter) Ready(sym gesture.Symbol, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready(sym, now)
}

func (a *Arbiter) ready(sym gesture.Symbol, now time.Time) bool {
	switch sym {
	case gesture.None:
		return false
	case gesture.Reset:
		return true
	}
	return a.lastSent.IsZero() || now.Sub(a.lastSent) >= a.cooldown
}

// MarkSent moves the cooldown clock to now.
func (a *Arbiter) MarkSent(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastSent = now
}

// Decide reports whether sym may be sent and, if so, records the send.
func (a *Arbiter) Decide(sym gesture.Symbol, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready(sym, now) {
		return false
	}
	a.lastSent = now
	return true
}

// LastSent returns the time of the last send, zero if none.
func (a *Arbiter) LastSent() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSent
}

// Remaining returns how much cooldown is left at now.
func (a *Arbiter) Remaining(now time.Time) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastSent.IsZero() {
		return 0
	}
	left := a.cooldown - now.Sub(a.lastSent)
	if left < 0 {
		return 0
	}
	return left
}
