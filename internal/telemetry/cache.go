package telemetry

import "sync"

// Cache holds the most recent status snapshot for the lifetime of the
// process. It starts empty.
//
// Readers never observe a partially written snapshot. Both Read and Write
// copy the snapshot, so callers can not mutate the cached value.
type Cache struct {
	mu       sync.RWMutex
	snapshot Snapshot
	valid    bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Read returns a copy of the cached snapshot. The boolean is false until the
// first successful ingestion.
func (c *Cache) Read() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return Snapshot{}, false
	}
	return Snapshot{ReceivedAt: c.snapshot.ReceivedAt, Status: c.snapshot.Status.Clone()}, true
}

// Write replaces the cached snapshot entirely.
func (c *Cache) Write(s Snapshot) {
	s.Status = s.Status.Clone()

	c.mu.Lock()
	c.snapshot = s
	c.valid = true
	c.mu.Unlock()
}
