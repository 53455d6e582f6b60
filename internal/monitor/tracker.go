package monitor

import "sync"

// Tracker remembers the last observed status per monitor id. It is the only
// state the cycle driver keeps outside the database. A restart empties it,
// which suppresses transition detection for exactly one cycle per monitor.
type Tracker interface {
	// Last returns the previously observed status and whether one exists.
	Last(monitorID string) (string, bool)

	// Observe records the latest status for a monitor.
	Observe(monitorID, status string)

	// Snapshot returns a copy of the whole table, for inspection endpoints.
	Snapshot() map[string]string

	// Clear empties the table.
	Clear()
}

// MemoryTracker is the in-process Tracker implementation.
// Safe for concurrent use.
type MemoryTracker struct {
	mu   sync.RWMutex
	last map[string]string
}

// NewMemoryTracker returns an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{last: make(map[string]string)}
}

func (t *MemoryTracker) Last(monitorID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.last[monitorID]
	return status, ok
}

func (t *MemoryTracker) Observe(monitorID, status string) {
	t.mu.Lock()
	t.last[monitorID] = status
	t.mu.Unlock()
}

func (t *MemoryTracker) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.last))
	for id, status := range t.last {
		out[id] = status
	}
	return out
}

func (t *MemoryTracker) Clear() {
	t.mu.Lock()
	t.last = make(map[string]string)
	t.mu.Unlock()
}
