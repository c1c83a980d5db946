package dbt

import "sync"

// Cache maps guest PC to the installed Translation for it, behind a
// RWMutex so concurrently executing threads can all look up
// translations while only a translating thread takes the write lock —
// the one piece of shared state in the runtime that needs explicit
// synchronization.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]*Translation
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uint64]*Translation)}
}

// Lookup returns the installed translation for pc, if any. The caller
// must Acquire it before use and Release it when done.
func (c *Cache) Lookup(pc uint64) (*Translation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[pc]
	return t, ok
}

// Insert installs t as the translation for t.PC, unless another
// translation is already installed there — two threads independently
// translating the same miss is resolved by first-commit-wins: whichever
// Insert observes an empty slot first keeps its translation, and the
// loser's is released immediately instead of being stored. Insert
// returns the translation that ended up installed for t.PC, which
// callers should use in place of t in case they lost the race.
func (c *Cache) Insert(t *Translation) *Translation {
	c.mu.Lock()
	existing, had := c.entries[t.PC]
	if had {
		c.mu.Unlock()
		t.Release()
		return existing
	}
	c.entries[t.PC] = t
	c.mu.Unlock()
	return t
}
