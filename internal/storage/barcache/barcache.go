// internal/storage/barcache/barcache.go
package barcache

import (
	"sync"
	"time"

	"github.com/backlab/simcore/internal/core"
)

// Cache is an in-memory bar cache owned by exactly one backtest run. It is
// allocated when the run starts, never shared across runs, and dropped on
// cleanup. Bars are kept per symbol in insertion order, trimmed to a max
// capacity (oldest first).
type Cache struct {
	bars    map[string][]core.Bar
	maxSize int
	mu      sync.RWMutex
}

// New creates a cache keeping at most maxSize bars per symbol.
func New(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		bars:    make(map[string][]core.Bar),
		maxSize: maxSize,
	}
}

// Put appends a bar for its symbol, evicting the oldest when over capacity.
func (c *Cache) Put(bar core.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bars := append(c.bars[bar.Symbol], bar)
	if len(bars) > c.maxSize {
		bars = bars[len(bars)-c.maxSize:]
	}
	c.bars[bar.Symbol] = bars
}

// Latest returns the most recently cached bar for the symbol.
func (c *Cache) Latest(symbol string) (*core.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bars := c.bars[symbol]
	if len(bars) == 0 {
		return nil, false
	}
	bar := bars[len(bars)-1]
	return &bar, true
}

// Range returns the cached bars for the symbol within [from, to].
func (c *Cache) Range(symbol string, from, to time.Time) []core.Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []core.Bar
	for _, bar := range c.bars[symbol] {
		if bar.Time.Before(from) || bar.Time.After(to) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// Symbols returns the symbols with at least one cached bar.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.bars))
	for sym := range c.bars {
		out = append(out, sym)
	}
	return out
}

// Len returns the number of cached bars for the symbol.
func (c *Cache) Len(symbol string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bars[symbol])
}

// Clear drops every cached bar. Called on run cleanup.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = make(map[string][]core.Bar)
}
