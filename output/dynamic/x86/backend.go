// Package x86 is the host backend that lowers arancini's IR onto
// x86-64 machine code. Its instruction-encoding helpers use a
// REX-prefixed stack-slot load/store style, retargeted from SSA stack
// slots to CPU-state offsets and a per-block scratch "value stack"
// with one 8-byte slot per node ID of the packet being lowered (the
// slots are reused from one packet to the next).
package x86

import (
	"arancini/ir"
	"arancini/output/dynamic"
)

// Fixed host registers reserved for the lifetime of a translated
// block, freeing every other GPR for value computation. r13/r14 as
// dedicated base pointers mirrors the reserved-pointer convention seen
// in other JIT-shaped code in the ecosystem (a fixed-purpose pointer
// register kept live across an entire generated function body).
const (
	regCPUState = 13 // R13: *CPUState for the executing thread
	regMemory   = 14 // R14: guest memory base
)

// chainSiteReserve is the number of bytes LowerEpilogue reserves at a
// chain site; runtime/dbt.ChainTable patches within this bound.
const chainSiteReserve = 16

// Backend lowers one translation at a time; construct a fresh Backend
// per translation, since valueSlot state does not
// survive across translations.
type Backend struct {
	slotBase  int // rsp offset where packet-local value slots begin
	stackSize int
	chainSite int
	exited    bool // an internal_call already emitted a full teardown+ret
}

// NewBackend builds an x86 Backend.
func NewBackend() *Backend {
	return &Backend{chainSite: -1}
}

func (b *Backend) Name() string { return "x86-64" }

// SupportsNode reports true for every kind: the x86 backend is the
// complete, non-stub host backend (contrast output/dynamic/arm64 and
// output/dynamic/riscv64, which answer this honestly per kind).
func (b *Backend) SupportsNode(k ir.Kind) bool { return true }

func (b *Backend) ChainSiteOffset() int { return b.chainSite }

// LowerPrologue reserves the pushed pointer registers and the
// packet-local value stack (valueSlots * 8 bytes, 16-byte aligned).
func (b *Backend) LowerPrologue(w *dynamic.CodeWriter, valueSlots int) error {
	b.chainSite = -1
	b.exited = false
	stackSize := alignUp(valueSlots*8, 16)
	b.slotBase = 0

	// push r13; push r14
	if err := w.EmitBytes([]byte{0x41, 0x55}); err != nil {
		return err
	}
	if err := w.EmitBytes([]byte{0x41, 0x56}); err != nil {
		return err
	}
	// mov r13, rdi ; mov r14, rsi  (cpu_state, memory per the SysV
	// native-entry ABI: RDI/RSI)
	if err := w.EmitBytes([]byte{0x49, 0x89, 0xFD}); err != nil {
		return err
	}
	if err := w.EmitBytes([]byte{0x49, 0x89, 0xF6}); err != nil {
		return err
	}
	if stackSize > 0 {
		// sub rsp, stackSize
		if err := w.EmitBytes([]byte{0x48, 0x81, 0xEC}); err != nil {
			return err
		}
		if err := w.Emit32(uint32(stackSize)); err != nil {
			return err
		}
	}
	b.stackSize = stackSize
	return nil
}

func (b *Backend) LowerEpilogue(w *dynamic.CodeWriter, exit dynamic.ExitKind) error {
	if b.exited {
		// An internal_call node already emitted its own teardown and
		// ret (the syscall/interrupt/end_of_block exit-reason path);
		// this call just closes out the FSM, nothing left to emit.
		return nil
	}
	if err := b.emitTeardown(w); err != nil {
		return err
	}

	switch exit {
	case dynamic.ExitToDispatcher:
		if err := w.EmitBytes([]byte{0x31, 0xC0}); err != nil { // xor eax, eax
			return err
		}
		return w.Emit8(0xC3) // ret
	default: // ExitChained
		b.chainSite = w.Size()
		// Reserve 16 bytes: enough for runtime/dbt's chain patch
		// ("movabs r11, imm64; jmp r11" is 13 bytes) with room to
		// spare for alignment. Until patched this behaves exactly
		// like ExitToDispatcher (xor eax,eax; ret; pad with nops).
		if err := w.EmitBytes([]byte{0x31, 0xC0}); err != nil {
			return err
		}
		if err := w.Emit8(0xC3); err != nil {
			return err
		}
		pad := make([]byte, chainSiteReserve-3)
		for i := range pad {
			pad[i] = 0x90
		}
		return w.EmitBytes(pad)
	}
}

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }

const (
	hRDIReg = 7
	hRSIReg = 6
)

// emitTeardown restores rdi/rsi from the pointer registers, restores
// rsp, and pops the saved pointer registers, mirroring LowerPrologue's
// setup; shared by the normal epilogue and by lowerInternalCall's
// early-exit path (an internal_call that ends the block returns
// directly rather than falling through to EndBlock).
//
// Restoring rdi/rsi matters even though nothing in the block needed
// them after the prologue: a chain-site jump (runtime/dbt.ChainTable's
// patched "movabs r11,target; jmp r11") lands directly on the target
// translation's own prologue, which re-derives r13/r14 from rdi/rsi
// exactly as this block's prologue did from callNative's arguments —
// so rdi/rsi have to still hold cpu_state/memory at that point, the
// same way a tail call must leave the ABI's argument registers intact
// for the callee it jumps into.
func (b *Backend) emitTeardown(w *dynamic.CodeWriter) error {
	if err := movRegReg(w, hRDIReg, regCPUState); err != nil {
		return err
	}
	if err := movRegReg(w, hRSIReg, regMemory); err != nil {
		return err
	}
	if b.stackSize > 0 {
		if err := w.EmitBytes([]byte{0x48, 0x81, 0xC4}); err != nil {
			return err
		}
		if err := w.Emit32(uint32(b.stackSize)); err != nil {
			return err
		}
	}
	if err := w.EmitBytes([]byte{0x41, 0x5E}); err != nil { // pop r14
		return err
	}
	return w.EmitBytes([]byte{0x41, 0x5D}) // pop r13
}

func (b *Backend) slotOffset(id ir.NodeID) int { return b.slotBase + int(id)*8 }

func (b *Backend) Lower(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	switch n.Kind {
	case ir.KindStart, ir.KindEnd:
		return nil
	case ir.KindConstant:
		return b.lowerConstant(n, w)
	case ir.KindReadReg:
		return b.lowerReadReg(n, w)
	case ir.KindReadMem:
		return b.lowerReadMem(pkt, n, w)
	case ir.KindBinaryArith:
		return b.lowerBinaryArith(pkt, n, w)
	case ir.KindShift:
		return b.lowerShift(pkt, n, w)
	case ir.KindBitExtract:
		return b.lowerBitExtract(pkt, n, w)
	case ir.KindNot:
		return b.lowerNot(pkt, n, w)
	case ir.KindZeroExtend, ir.KindSignExtend, ir.KindBitcast:
		return b.lowerExtend(pkt, n, w)
	case ir.KindSelect:
		return b.lowerSelect(pkt, n, w)
	case ir.KindWriteReg:
		return b.lowerWriteReg(pkt, n, w)
	case ir.KindWriteMem:
		return b.lowerWriteMem(pkt, n, w)
	case ir.KindWritePC:
		return b.lowerWritePC(pkt, n, w)
	case ir.KindInternalCall:
		return b.lowerInternalCall(pkt, n, w)
	case ir.KindBr, ir.KindRet:
		return nil // the transfer itself was already materialized by a preceding write_pc
	default:
		return &dynamic.ErrNodeUnsupported{Backend: b.Name(), Kind: n.Kind.String()}
	}
}

