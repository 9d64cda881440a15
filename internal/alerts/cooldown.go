package alerts

import (
	"sync"
	"time"
)

// Cooldown suppresses repeat alerts for the same key within a window. Keys
// are room plus alert kind, so one room's fall alert does not silence
// another room.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{last: make(map[string]time.Time)}
}

// Allow reports whether an alert for key may fire now, and if so records the
// firing. A non-positive cooldown always allows.
func (c *Cooldown) Allow(key string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.last[key]; ok {
		if now.Sub(ts) < cooldown {
			return false
		}
	}
	c.last[key] = now
	return true
}
