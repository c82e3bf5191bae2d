// internal/view/refresh.go
package view

import (
	"sync"
	"time"
)

// DefaultRefreshCooldown is the minimum spacing between reconnect-triggered refreshes.
const DefaultRefreshCooldown = 5 * time.Second

// DefaultConfirmDelay is how long after a submitted action the confirmation refresh runs.
const DefaultConfirmDelay = 2 * time.Second

// RefreshGate rate-limits refreshes to one per cooldown. The first call always passes.
type RefreshGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
	now      func() time.Time
}

// NewRefreshGate returns a gate using the wall clock.
func NewRefreshGate(cooldown time.Duration) *RefreshGate {
	return newRefreshGate(cooldown, time.Now)
}

func newRefreshGate(cooldown time.Duration, now func() time.Time) *RefreshGate {
	if cooldown <= 0 {
		cooldown = DefaultRefreshCooldown
	}
	return &RefreshGate{cooldown: cooldown, now: now}
}

// Allow reports whether a refresh may run now and, if so, starts a new cooldown.
func (g *RefreshGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.now()
	if !g.last.IsZero() && t.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = t
	return true
}
