package dynamic

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// defaultCapacity is the initial size of a CodeWriter's mmap region.
// It's generous enough that chaining sites and small translations
// almost never need to grow, but growth (via grow) is still correct
// when one does.
const defaultCapacity = 64 * 1024

// CodeWriter is an append-only, growable buffer for one translation's
// host code. It owns anonymous, page-backed memory that starts
// writable-but-not-executable and becomes executable-but-not-writable
// at Finalise, enforcing W xor X for the lifetime of the page: no
// translation is ever both writable and executable at once.
type CodeWriter struct {
	region   []byte
	size     int
	finished bool
}

// NewCodeWriter allocates a fresh writable code region.
func NewCodeWriter() (*CodeWriter, error) {
	region, err := unix.Mmap(-1, 0, defaultCapacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("dynamic: mmap code region: %w", err)
	}
	return &CodeWriter{region: region}, nil
}

func (w *CodeWriter) grow(extra int) error {
	need := w.size + extra
	if need <= len(w.region) {
		return nil
	}
	newCap := len(w.region) * 2
	for newCap < need {
		newCap *= 2
	}
	bigger, err := unix.Mmap(-1, 0, newCap, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("dynamic: grow code region to %d: %w", newCap, err)
	}
	copy(bigger, w.region[:w.size])
	if err := unix.Munmap(w.region); err != nil {
		return fmt.Errorf("dynamic: unmap old code region: %w", err)
	}
	w.region = bigger
	return nil
}

// Emit8 appends a single byte.
func (w *CodeWriter) Emit8(b byte) error {
	if err := w.grow(1); err != nil {
		return err
	}
	w.region[w.size] = b
	w.size++
	return nil
}

// EmitBytes appends raw bytes verbatim, the primitive every host
// backend's instruction encoder is built on.
func (w *CodeWriter) EmitBytes(b []byte) error {
	if err := w.grow(len(b)); err != nil {
		return err
	}
	copy(w.region[w.size:], b)
	w.size += len(b)
	return nil
}

// Emit16/32/64 append a fixed-width little-endian value.
func (w *CodeWriter) Emit16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return w.EmitBytes(buf[:])
}

func (w *CodeWriter) Emit32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.EmitBytes(buf[:])
}

func (w *CodeWriter) Emit64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.EmitBytes(buf[:])
}

// Ptr returns the address of the start of the region, valid for the
// lifetime of the CodeWriter (stable across growth only after
// Finalise, since grow may remap).
func (w *CodeWriter) Ptr() uintptr {
	if len(w.region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&w.region[0]))
}

// Size returns the number of bytes emitted so far.
func (w *CodeWriter) Size() int { return w.size }

// Bytes returns the emitted bytes (for disassembly/debug output, not
// for execution — execution should go through Finalise).
func (w *CodeWriter) Bytes() []byte { return w.region[:w.size] }

// Finalise switches the region from writable to executable and returns
// the emitted bytes. The mapping keeps its full allocated size; it is
// not shrunk to the emitted size. After this call, writing through
// this CodeWriter is no longer possible; only a ChainWriter may patch
// the result, and only at pre-reserved chain sites.
func (w *CodeWriter) Finalise() ([]byte, error) {
	if w.finished {
		return w.region[:w.size], nil
	}
	if err := unix.Mprotect(w.region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return nil, fmt.Errorf("dynamic: mprotect code region executable: %w", err)
	}
	w.finished = true
	return w.region[:w.size], nil
}

// Release unmaps the region; callers must not touch the CodeWriter or
// any slice derived from it afterward.
func (w *CodeWriter) Release() error {
	return unix.Munmap(w.region)
}
