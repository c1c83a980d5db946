package x86

import (
	abi "arancini/abi/x86"
	"arancini/ir"
	"arancini/output/dynamic"
)

// x86-64 GPR numbers, independent of the guest register numbering in
// abi/x86: these index the host machine's own registers.
const (
	hRAX = 0
	hRCX = 1
	hRDX = 2
	hRSP = 4
)

// Condition-code nibbles shared by Jcc/SETcc/CMOVcc encodings.
const (
	ccE  = 0x4 // equal / zero
	ccNE = 0x5 // not equal / not zero
)

func (b *Backend) loadOperand(w *dynamic.CodeWriter, id ir.NodeID, dst int) error {
	return loadFromDisp(w, dst, hRSP, b.slotOffset(id))
}

func (b *Backend) storeResult(w *dynamic.CodeWriter, id ir.NodeID, src int) error {
	return storeToDisp(w, hRSP, b.slotOffset(id), src)
}

// narrowTo truncates (unsigned) or sign-extends (signed) reg down to
// t's declared width, approximating exact per-width wraparound by
// widening every computation to 64 bits and narrowing only the stored
// result — see DESIGN.md's note on sub-64-bit arithmetic.
func narrowTo(w *dynamic.CodeWriter, reg int, t ir.ValueType) error {
	if t.IsNone() || t.Lanes != 1 || t.Width <= 0 || t.Width >= 64 {
		return nil
	}
	if t.Class == ir.ClassSignedInteger {
		return signExtendReg(w, reg, t.Width)
	}
	return zeroExtendReg(w, reg, t.Width)
}

func zeroExtendReg(w *dynamic.CodeWriter, reg, width int) error {
	switch width {
	case 32:
		// A 32-bit GPR write always zero-extends the upper 32 bits on
		// amd64; moving the register into itself at 32-bit width does
		// the job without disturbing its value.
		if err := w.Emit8(rex(0, reg, 0, reg)); err != nil {
			return err
		}
		if err := w.Emit8(0x89); err != nil {
			return err
		}
		return w.Emit8(modrm(3, reg, reg))
	case 16:
		return andRegImm32(w, reg, 0xFFFF)
	case 8:
		return andRegImm32(w, reg, 0xFF)
	default:
		mask := uint32(1)<<uint(width) - 1
		return andRegImm32(w, reg, mask)
	}
}

func signExtendReg(w *dynamic.CodeWriter, reg, width int) error {
	switch width {
	case 32:
		// movsxd reg, reg32
		if err := w.Emit8(rex(1, reg, 0, reg)); err != nil {
			return err
		}
		if err := w.Emit8(0x63); err != nil {
			return err
		}
		return w.Emit8(modrm(3, reg, reg))
	case 16:
		if err := w.Emit8(rex(1, reg, 0, reg)); err != nil {
			return err
		}
		if err := w.Emit8(0x0F); err != nil {
			return err
		}
		if err := w.Emit8(0xBF); err != nil {
			return err
		}
		return w.Emit8(modrm(3, reg, reg))
	default: // 8 and anything narrower treated as a byte
		if err := w.Emit8(rex(1, reg, 0, reg)); err != nil {
			return err
		}
		if err := w.Emit8(0x0F); err != nil {
			return err
		}
		if err := w.Emit8(0xBE); err != nil {
			return err
		}
		return w.Emit8(modrm(3, reg, reg))
	}
}

// andRegImm32 emits "and dst, imm32" (REX.W + 81 /4 id).
func andRegImm32(w *dynamic.CodeWriter, dst int, imm32 uint32) error {
	if err := w.Emit8(rex(1, 0, 0, dst)); err != nil {
		return err
	}
	if err := w.Emit8(0x81); err != nil {
		return err
	}
	if err := w.Emit8(modrm(3, 4, dst)); err != nil {
		return err
	}
	return w.Emit32(imm32)
}

func (b *Backend) lowerConstant(n *ir.Node, w *dynamic.CodeWriter) error {
	if err := movRegImm64(w, hRAX, n.ConstValue); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerReadReg(n *ir.Node, w *dynamic.CodeWriter) error {
	if err := loadFromDispWidth(w, hRAX, regCPUState, n.RegOffset, n.Type.Bits()); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerReadMem(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRDX); err != nil {
		return err
	}
	if err := aluRegReg(w, opAdd, hRDX, regMemory); err != nil {
		return err
	}
	if err := loadFromDispWidth(w, hRAX, hRDX, 0, n.Type.Bits()); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerWriteMem(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	valueType := pkt.Node(n.Inputs[1]).Type
	if err := b.loadOperand(w, n.Inputs[0], hRDX); err != nil {
		return err
	}
	if err := aluRegReg(w, opAdd, hRDX, regMemory); err != nil {
		return err
	}
	if err := b.loadOperand(w, n.Inputs[1], hRAX); err != nil {
		return err
	}
	return storeToDispWidth(w, hRDX, 0, hRAX, valueType.Bits())
}

func (b *Backend) lowerWriteReg(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	return storeToDisp(w, regCPUState, n.RegOffset, hRAX)
}

func (b *Backend) lowerWritePC(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	return storeToDisp(w, regCPUState, abi.OffPC, hRAX)
}

var arithOpcode = map[ir.ArithOp]byte{
	ir.ArithAdd: opAdd,
	ir.ArithSub: opSub,
	ir.ArithAnd: opAnd,
	ir.ArithOr:  opOr,
	ir.ArithXor: opXor,
}

func (b *Backend) lowerBinaryArith(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if n.ArithOp == ir.ArithCmp {
		return b.lowerArithCmp(n, w)
	}
	opcode, ok := arithOpcode[n.ArithOp]
	if !ok {
		return &dynamic.ErrNodeUnsupported{Backend: b.Name(), Kind: "binary_arith(mul/div)"}
	}
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	if err := b.loadOperand(w, n.Inputs[1], hRDX); err != nil {
		return err
	}
	if err := aluRegReg(w, opcode, hRAX, hRDX); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

// lowerArithCmp lowers ArithCmp as an equality boolean: a U8 1 if the
// two operands are equal, 0 otherwise. Flag
// computation in input/x86 composes this with bit-extract/not rather
// than relying on the host's native condition flags directly.
func (b *Backend) lowerArithCmp(n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	if err := b.loadOperand(w, n.Inputs[1], hRDX); err != nil {
		return err
	}
	if err := aluRegReg(w, opCmp, hRAX, hRDX); err != nil {
		return err
	}
	if err := movRegImm64(w, hRAX, 0); err != nil {
		return err
	}
	if err := setccReg(w, ccE, hRAX); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

// setccReg emits "setCC dst8" (0F 90+cc /0), leaving the rest of dst
// untouched; callers that need the full register clean pre-zero it.
func setccReg(w *dynamic.CodeWriter, cc byte, dst int) error {
	if err := w.Emit8(rex(0, 0, 0, dst)); err != nil {
		return err
	}
	if err := w.Emit8(0x0F); err != nil {
		return err
	}
	if err := w.Emit8(0x90 + cc); err != nil {
		return err
	}
	return w.Emit8(modrm(3, 0, dst))
}

var shiftDigit = map[ir.ShiftOp]int{
	ir.ShiftLSL: 4,
	ir.ShiftLSR: 5,
	ir.ShiftASR: 7,
}

func (b *Backend) lowerShift(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	if err := b.loadOperand(w, n.Inputs[1], hRCX); err != nil {
		return err
	}
	digit := shiftDigit[n.ShiftOp]
	if err := shiftRegCL(w, hRAX, digit); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerBitExtract(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	if n.ExtractLo > 0 {
		if err := w.Emit8(rex(1, 0, 0, hRAX)); err != nil {
			return err
		}
		if err := w.Emit8(0xC1); err != nil {
			return err
		}
		if err := w.Emit8(modrm(3, 5, hRAX)); err != nil { // /5 = SHR
			return err
		}
		if err := w.Emit8(byte(n.ExtractLo)); err != nil {
			return err
		}
	}
	width := n.ExtractHi - n.ExtractLo
	if width < 64 {
		mask := uint32(1)<<uint(width) - 1
		if err := andRegImm32(w, hRAX, mask); err != nil {
			return err
		}
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerNot(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	if err := notReg(w, hRAX); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerExtend(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
		return err
	}
	srcType := pkt.Node(n.Inputs[0]).Type
	switch n.Kind {
	case ir.KindSignExtend:
		if err := narrowTo(w, hRAX, ir.S(srcType.Width)); err != nil {
			return err
		}
	default: // ZeroExtend, Bitcast
		if err := narrowTo(w, hRAX, ir.U(srcType.Width)); err != nil {
			return err
		}
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

func (b *Backend) lowerSelect(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	cond, whenTrue, whenFalse := n.Inputs[0], n.Inputs[1], n.Inputs[2]
	if err := b.loadOperand(w, whenFalse, hRAX); err != nil {
		return err
	}
	if err := b.loadOperand(w, whenTrue, hRDX); err != nil {
		return err
	}
	if err := b.loadOperand(w, cond, hRCX); err != nil {
		return err
	}
	if err := testRegReg(w, hRCX); err != nil {
		return err
	}
	if err := cmovRegReg(w, ccNE, hRAX, hRDX); err != nil {
		return err
	}
	if err := narrowTo(w, hRAX, n.Type); err != nil {
		return err
	}
	return b.storeResult(w, n.ID, hRAX)
}

// lowerInternalCall does not call back into Go from JIT'd machine
// code — doing that safely would need the translation to cooperate
// with the Go scheduler's g-register bookkeeping on every such call,
// which a hand-emitted instruction stream has no reliable way to do
// without running the toolchain to verify it. Instead, an
// effect-bearing internal_call (syscall/interrupt/end_of_block, the
// only ones that end a packet's block per the packet-type derivation
// table) stores its one argument at abi.OffCallArg, writes the
// matching abi.Exit* reason code into RAX, tears the block down and
// returns straight through callNative; runtime/exec.Context.Run reads
// the reason and argument back out of cpu_state and services the call
// in Go. An internal_call with ir.EffectNormal (handle_poison, used
// for port I/O) cannot use this scheme since the block keeps running
// afterward, so it is approximated as a no-op.
func (b *Backend) lowerInternalCall(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	var reason uint64
	switch n.Effect {
	case ir.EffectSyscall:
		reason = abi.ExitSyscall
	case ir.EffectInterrupt:
		reason = abi.ExitInterrupt
	case ir.EffectEndOfBlock:
		reason = abi.ExitHalt
	default:
		return nil // EffectNormal: approximated as a no-op
	}

	if len(n.Inputs) > 0 {
		if err := b.loadOperand(w, n.Inputs[0], hRAX); err != nil {
			return err
		}
		if err := storeToDisp(w, regCPUState, abi.OffCallArg, hRAX); err != nil {
			return err
		}
	}
	if err := movRegImm64(w, hRAX, reason); err != nil {
		return err
	}
	if err := b.emitTeardown(w); err != nil {
		return err
	}
	b.exited = true
	return w.Emit8(0xC3)
}
