package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"overtid/internal/core/timereg"
)

// snapshot is everything a session needs to re-run the pipeline: the raw
// records plus the user's absence overrides, and the computed outputs
type snapshot struct {
	records   []timereg.DailyRecord
	overrides map[string]timereg.AbsenceType

	outputs     []timereg.DailyOutput
	summaries   []timereg.WeeklySummary
	callOutDays []string

	storedAt time.Time
}

// sessionCache is the in-process preview store. A restart discards sessions;
// entries older than the TTL are swept lazily on every write
type sessionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]snapshot
}

func newSessionCache(ttl time.Duration) *sessionCache {
	return &sessionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]snapshot),
	}
}

// Put stores a new snapshot under a fresh session id
func (c *sessionCache) Put(snap snapshot) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()

	id := uuid.NewString()
	snap.storedAt = c.now()
	c.entries[id] = snap
	return id
}

// Replace overwrites an existing session in place, refreshing its TTL
func (c *sessionCache) Replace(id string, snap snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()

	snap.storedAt = c.now()
	c.entries[id] = snap
}

// Get returns the snapshot for id if it exists and has not expired
func (c *sessionCache) Get(id string) (snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.entries[id]
	if !ok {
		return snapshot{}, false
	}
	if c.now().Sub(snap.storedAt) > c.ttl {
		delete(c.entries, id)
		return snapshot{}, false
	}
	return snap, true
}

func (c *sessionCache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for id, snap := range c.entries {
		if snap.storedAt.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}
