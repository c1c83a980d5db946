package dbt

import (
	"sync/atomic"

	"arancini/output/dynamic"
)

// Translation is one finalised, executable block of host code for a
// single guest entry PC.
type Translation struct {
	PC          uint64
	Code        []byte
	Entry       uintptr
	ChainOffset int // -1 if this translation reserved no chain site
	ChainBound  int // reserved byte length at ChainOffset, 0 if none

	writer *dynamic.CodeWriter
	refs   int32 // starts at 1: the cache's own reference
}

// NewTranslation wraps a finalised CodeWriter as a cache entry, owning
// exactly one reference on the cache's behalf. Cache.Insert never
// replaces an installed translation; it drops that reference itself
// when t loses the race to one already installed.
func NewTranslation(pc uint64, w *dynamic.CodeWriter, entry uintptr, chainOffset, chainBound int, code []byte) *Translation {
	return &Translation{PC: pc, Code: code, Entry: entry, ChainOffset: chainOffset, ChainBound: chainBound, writer: w, refs: 1}
}

// Acquire takes a reference for the duration of one invocation, so a
// Release elsewhere can't unmap the region out from under code a
// thread is still executing.
func (t *Translation) Acquire() { atomic.AddInt32(&t.refs, 1) }

// Release drops a reference, unmapping the backing region once the
// count reaches zero, so a translation is only actually freed once
// every in-flight invocation that had already acquired it returns.
func (t *Translation) Release() {
	if atomic.AddInt32(&t.refs, -1) == 0 {
		t.writer.Release()
	}
}
