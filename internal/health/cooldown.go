package health

import (
	"sync"
	"time"
)

const DefaultCooldown = 300 * time.Second

// CooldownGate suppresses repeats of the same alert tag within a window.
// Tags are independent of each other.
type CooldownGate struct {
	mu        sync.Mutex
	cooldown  time.Duration
	now       func() time.Time
	lastFired map[string]time.Time
}

func NewCooldownGate(cooldown time.Duration, now func() time.Time) *CooldownGate {
	if now == nil {
		now = time.Now
	}

	return &CooldownGate{
		cooldown:  cooldown,
		now:       now,
		lastFired: make(map[string]time.Time),
	}
}

// ShouldFire reports whether tag may fire now and, if so, records it.
// A tag fires when unseen or when strictly more than the cooldown has elapsed.
func (g *CooldownGate) ShouldFire(tag string) bool {
	return g.ShouldFireAt(tag, g.now())
}

// ShouldFireAt is ShouldFire against a caller supplied clock, such as the
// timestamp of the frame being processed.
func (g *CooldownGate) ShouldFireAt(tag string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastFired[tag]; ok && now.Sub(last) <= g.cooldown {
		return false
	}
	g.lastFired[tag] = now

	return true
}

// LastFired returns when tag last fired.
func (g *CooldownGate) LastFired(tag string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.lastFired[tag]
	return t, ok
}

func (g *CooldownGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastFired = make(map[string]time.Time)
}
