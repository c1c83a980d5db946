// Package arm64 is an intentionally partial host backend: the
// original source's AArch64 output path leaned on an external
// assembler (Keystone) rather than a hand-rolled encoder, and
// arancini-go carries that asymmetry forward rather than inventing a
// full ARM64 encoder the spec never asked for. It satisfies the
// dynamic.Backend interface so the translation engine can select a
// host backend uniformly. It accepts the block boundary and a handful
// of node kinds (start, end, constant, read_reg, write_reg) without
// emitting any code for them; every other kind returns
// ErrNodeUnsupported.
package arm64

import (
	"arancini/ir"
	"arancini/output/dynamic"
)

type Backend struct {
	valueSlots int
}

func NewBackend() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "arm64" }

func (b *Backend) SupportsNode(k ir.Kind) bool {
	switch k {
	case ir.KindStart, ir.KindEnd, ir.KindConstant, ir.KindReadReg, ir.KindWriteReg:
		return true
	default:
		return false
	}
}

// LowerPrologue and LowerEpilogue emit nothing: without a real
// encoder there is no prologue worth writing, and a translation built
// entirely of supported-but-trivial nodes still needs boundary calls
// that succeed so the Idle/BlockOpen FSM in output/dynamic.Context
// stays correct for callers exercising this backend in isolation.
func (b *Backend) LowerPrologue(w *dynamic.CodeWriter, valueSlots int) error {
	b.valueSlots = valueSlots
	return nil
}

func (b *Backend) LowerEpilogue(w *dynamic.CodeWriter, exit dynamic.ExitKind) error { return nil }

// ChainSiteOffset always reports -1: this backend never reserves a
// chain site, since it cannot emit the tail-transfer sequence a
// chained exit needs.
func (b *Backend) ChainSiteOffset() int { return -1 }

func (b *Backend) Lower(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if !b.SupportsNode(n.Kind) {
		return &dynamic.ErrNodeUnsupported{Backend: b.Name(), Kind: n.Kind.String()}
	}
	return nil
}
