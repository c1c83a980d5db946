package exec

import (
	abi "arancini/abi/x86"
)

// Thread owns one guest execution context's CPU-state block. The
// block's layout is opaque to this package — only abi/x86's offsets
// give it meaning — so Thread itself just carries storage and the one
// piece of bookkeeping the dispatch loop needs between invocations.
type Thread struct {
	State []byte // abi.StateSize bytes, rounds up to a 16-byte boundary

	// ChainAddress holds the entry PC NewThread was given. Context.Run
	// neither reads nor writes it: the next guest PC travels in
	// State[abi.OffPC:].
	ChainAddress uint64

	halted bool
	reason int64
}

// NewThread allocates a zeroed CPU-state block and sets the thread's
// initial PC.
func NewThread(entryPC uint64) *Thread {
	t := &Thread{State: make([]byte, abi.StateSize), ChainAddress: entryPC}
	t.writePC(entryPC)
	return t
}

// Halted reports whether the thread has trapped (ExitHalt, a failed
// translation, or an unrecognized exit reason) and Run will refuse
// to resume it.
func (t *Thread) Halted() bool { return t.halted }

func (t *Thread) writePC(pc uint64) {
	putU64(t.State, abi.OffPC, pc)
}

func (t *Thread) readPC() uint64 {
	return getU64(t.State, abi.OffPC)
}

func (t *Thread) callArg() uint64 {
	return getU64(t.State, abi.OffCallArg)
}

func putU64(b []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		b[off+i] = byte(v >> uint(8*i))
	}
}

func getU64(b []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[off+i]) << uint(8*i)
	}
	return v
}
