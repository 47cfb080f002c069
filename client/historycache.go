package client

import (
	"sync"
	"time"

	"github.com/medtrack/claims-app/claims/models"
)

type historyEntry struct {
	entries   []*models.ChangeLogEntry
	fetchedAt time.Time
}

// HistoryCache memoizes per-claim change logs for a short window so that
// reopening a detail view does not refetch history on every render. The
// clock is injected so expiry is testable without sleeping.
type HistoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]historyEntry
}

func NewHistoryCache(ttl time.Duration, now func() time.Time) *HistoryCache {
	if now == nil {
		now = time.Now
	}
	return &HistoryCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[int64]historyEntry),
	}
}

func (c *HistoryCache) Get(claimID int64) ([]*models.ChangeLogEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[claimID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, claimID)
		return nil, false
	}
	return e.entries, true
}

func (c *HistoryCache) Set(claimID int64, entries []*models.ChangeLogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[claimID] = historyEntry{entries: entries, fetchedAt: c.now()}
}

// Invalidate drops a claim's cached history. Called after a successful
// update so the next view shows the new change log rows.
func (c *HistoryCache) Invalidate(claimID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, claimID)
}
