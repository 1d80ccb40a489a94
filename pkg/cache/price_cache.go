package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// PriceCache holds the latest streamed price per symbol, sharded by symbol
// hash so feed writes and runner reads rarely contend.
type PriceCache struct {
	shards [numShards]*priceShard
	now    func() time.Time
}

type priceShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

// Quote is a cached price and when it was observed.
type Quote struct {
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	c := &PriceCache{now: time.Now}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &priceShard{
			items: make(map[string]Quote),
		}
	}
	return c
}

// WithClock swaps the time source; used by tests.
func (c *PriceCache) WithClock(now func() time.Time) *PriceCache {
	c.now = now
	return c
}

func (c *PriceCache) shard(symbol string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a price for a symbol. Non-positive prices are ignored.
func (c *PriceCache) Set(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s := c.shard(symbol)
	s.mu.Lock()
	s.items[symbol] = Quote{Price: price, UpdatedAt: c.now()}
	s.mu.Unlock()
}

// Get returns the latest price for a symbol.
func (c *PriceCache) Get(symbol string) (float64, bool) {
	s := c.shard(symbol)
	s.mu.RLock()
	q, ok := s.items[symbol]
	s.mu.RUnlock()
	return q.Price, ok
}

// GetFresh returns the price only if it is younger than maxAge.
func (c *PriceCache) GetFresh(symbol string, maxAge time.Duration) (float64, bool) {
	s := c.shard(symbol)
	s.mu.RLock()
	q, ok := s.items[symbol]
	s.mu.RUnlock()
	if !ok || c.now().Sub(q.UpdatedAt) >= maxAge {
		return 0, false
	}
	return q.Price, true
}

// Delete removes a symbol from the cache.
func (c *PriceCache) Delete(symbol string) {
	s := c.shard(symbol)
	s.mu.Lock()
	delete(s.items, symbol)
	s.mu.Unlock()
}

// Len returns total items across all shards.
func (c *PriceCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries older than maxAge.
func (c *PriceCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := c.now().Add(-maxAge)

	for _, s := range c.shards {
		s.mu.Lock()
		for sym, q := range s.items {
			if q.UpdatedAt.Before(cutoff) {
				delete(s.items, sym)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Snapshot returns a copy of every cached quote.
func (c *PriceCache) Snapshot() map[string]Quote {
	result := make(map[string]Quote)
	for _, s := range c.shards {
		s.mu.RLock()
		for sym, q := range s.items {
			result[sym] = q
		}
		s.mu.RUnlock()
	}
	return result
}
