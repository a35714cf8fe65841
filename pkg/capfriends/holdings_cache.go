package capfriends

import (
	"sync"
	"time"
)

type cachedHoldings struct {
	holdings []Holding
	storedAt time.Time
}

// holdingsCache keeps the active holdings per portfolio. Entries expire after
// ttl and are dropped whenever the portfolio's ledger changes.
type holdingsCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	byKey map[string]cachedHoldings
	// gen counts invalidations so a reader that loaded the ledger before a
	// write cannot store its stale result afterwards.
	gen   map[string]uint64
	epoch uint64
}

func newHoldingsCache(ttl time.Duration, now func() time.Time) *holdingsCache {
	return &holdingsCache{
		ttl:   ttl,
		now:   now,
		byKey: map[string]cachedHoldings{},
		gen:   map[string]uint64{},
	}
}

func (c *holdingsCache) get(portfolioID string) ([]Holding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byKey[portfolioID]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		return nil, false
	}
	copied := append([]Holding(nil), entry.holdings...)
	return copied, true
}

func (c *holdingsCache) generation(portfolioID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen[portfolioID] + c.epoch
}

func (c *holdingsCache) set(portfolioID string, gen uint64, items []Holding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[portfolioID]+c.epoch != gen {
		return
	}
	c.byKey[portfolioID] = cachedHoldings{
		holdings: append([]Holding(nil), items...),
		storedAt: c.now(),
	}
}

func (c *holdingsCache) invalidate(portfolioID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, portfolioID)
	c.gen[portfolioID]++
}

func (c *holdingsCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = map[string]cachedHoldings{}
	c.epoch++
}
