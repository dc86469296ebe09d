package service

import (
	"sync"
	"time"

	"swap_rfq/internal/domain"
)

// defaultStaleAfter bounds how old a streamed tick may be before readers
// fall back to the persisted VWAP.
const defaultStaleAfter = 30 * time.Second

// LivePriceCache holds the most recent streamed tick per pair. Writers are
// the stream worker's read loop; readers are quote pricing paths that want
// fresher data than the last aggregation cycle.
type LivePriceCache struct {
	mu         sync.RWMutex
	ticks      map[domain.AssetPair]domain.PriceTick
	staleAfter time.Duration
}

// NewLivePriceCache creates an empty cache with the default freshness bound.
func NewLivePriceCache() *LivePriceCache {
	return &LivePriceCache{
		ticks:      make(map[domain.AssetPair]domain.PriceTick),
		staleAfter: defaultStaleAfter,
	}
}

// Update stores the latest tick for the pair.
func (c *LivePriceCache) Update(pair domain.AssetPair, tick domain.PriceTick) {
	c.mu.Lock()
	c.ticks[pair] = tick
	c.mu.Unlock()
}

// Latest returns the cached tick if one exists and is still fresh.
func (c *LivePriceCache) Latest(pair domain.AssetPair) (domain.PriceTick, bool) {
	c.mu.RLock()
	tick, ok := c.ticks[pair]
	c.mu.RUnlock()
	if !ok || time.Since(tick.Timestamp) > c.staleAfter {
		return domain.PriceTick{}, false
	}
	return tick, true
}

// Len returns the number of pairs with any cached tick, fresh or not.
func (c *LivePriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ticks)
}
