package dbt

import (
	"fmt"
	"sync"

	"arancini/output/dynamic"
	x86 "arancini/output/dynamic/x86"
)

// ChainTable patches a translation's one reserved chain site (this
// backend reserves a single patchable site per translation rather than
// one per successor edge) to
// jump directly into whatever successor translation gets installed for
// the target PC, instead of falling through to the dispatcher on every
// block boundary.
type ChainTable struct {
	mu      sync.Mutex
	writers map[uint64]*dynamic.ChainWriter // keyed by translation PC
}

func NewChainTable() *ChainTable {
	return &ChainTable{writers: make(map[uint64]*dynamic.ChainWriter)}
}

// Patch rewrites from's chain site to jump straight to target.Entry.
// It is a no-op, not an error, if from reserved no chain site (stub
// backends, or a block whose last packet ends in a return).
func (c *ChainTable) Patch(from, target *Translation) error {
	if from.ChainOffset < 0 {
		return nil
	}
	cw, err := c.writerFor(from)
	if err != nil {
		return err
	}
	return cw.Patch(x86.EncodeChainJump(target.Entry))
}

func (c *ChainTable) writerFor(t *Translation) (*dynamic.ChainWriter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cw, ok := c.writers[t.PC]; ok {
		return cw, nil
	}
	cw, err := dynamic.NewChainWriter(t.Entry+uintptr(t.ChainOffset), t.ChainBound)
	if err != nil {
		return nil, fmt.Errorf("dbt: chain writer for %#x: %w", t.PC, err)
	}
	c.writers[t.PC] = cw
	return cw, nil
}
