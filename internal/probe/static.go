package probe

import (
	"context"
	"sync"
)

// StaticProbe serves statuses from a mutable in-memory table. Tests and demo
// deployments use it to script container lifecycles without a Docker daemon.
//
// Safe for concurrent use.
type StaticProbe struct {
	mu       sync.RWMutex
	statuses map[string]string
}

// NewStaticProbe returns a probe seeded with the given statuses. A nil map
// starts empty.
func NewStaticProbe(statuses map[string]string) *StaticProbe {
	m := make(map[string]string, len(statuses))
	for ref, status := range statuses {
		m[ref] = status
	}
	return &StaticProbe{statuses: m}
}

// Status returns the scripted status for ref, or StatusUnknown when the
// target is not in the table.
func (p *StaticProbe) Status(_ context.Context, ref string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status, ok := p.statuses[ref]
	if !ok {
		return StatusUnknown, nil
	}
	return status, nil
}

// Set scripts the status for a target.
func (p *StaticProbe) Set(ref, status string) {
	p.mu.Lock()
	p.statuses[ref] = status
	p.mu.Unlock()
}

// Remove deletes a target from the table, making it probe as unknown.
func (p *StaticProbe) Remove(ref string) {
	p.mu.Lock()
	delete(p.statuses, ref)
	p.mu.Unlock()
}
