package meowstatus

import (
	"strings"
	"sync"
	"time"
)

// cooldownGate tracks a not-before timestamp per resource. A refresh is
// permitted iff now is at or past that timestamp; marking an attempt always
// pushes the timestamp forward, success or not, so a failing resource is never
// hammered faster than its cooldown.
type cooldownGate struct {
	mu        sync.Mutex
	notBefore map[string]time.Time
}

func newCooldownGate() *cooldownGate {
	return &cooldownGate{notBefore: make(map[string]time.Time)}
}

// Allowed reports whether the resource may attempt a refresh at now.
func (g *cooldownGate) Allowed(resource string, now time.Time) bool {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return !now.Before(g.notBefore[resource])
}

// MarkAttempted unconditionally sets the next legal attempt to now+cooldown.
func (g *cooldownGate) MarkAttempted(resource string, now time.Time, cooldown time.Duration) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notBefore[resource] = now.Add(cooldown)
}

// Acquire checks and marks in one step so a timer tick and a manual trigger
// racing each other cannot both proceed within the same cooldown window.
func (g *cooldownGate) Acquire(resource string, now time.Time, cooldown time.Duration) bool {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Before(g.notBefore[resource]) {
		return false
	}
	g.notBefore[resource] = now.Add(cooldown)
	return true
}

// Reset makes the resource immediately eligible again.
func (g *cooldownGate) Reset(resource string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.notBefore, strings.TrimSpace(resource))
}
