package x86

import (
	"arancini/abi/x86"
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// gpr resolves an x86asm general-purpose register to its CPU-state
// offset and the width of the view the mnemonic actually names (64,
// 32, 16 or 8 bits), or ok=false if r isn't a GPR this lifter handles
// (segment registers and RIP are handled by their own callers).
func gpr(r x86asm.Reg) (offset, width int, ok bool) {
	switch {
	case r >= x86asm.RAX && r <= x86asm.R15:
		return x86.GPROffset(int(r - x86asm.RAX)), 64, true
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return x86.GPROffset(int(r - x86asm.EAX)), 32, true
	case r >= x86asm.AX && r <= x86asm.R15W:
		return x86.GPROffset(int(r - x86asm.AX)), 16, true
	case r >= x86asm.AH && r <= x86asm.BH:
		// High-byte legacy forms (AH/CH/DH/BH) alias bits [8:16) of
		// the corresponding 16-bit register; only the original four
		// registers have one, so this is a short, explicit list.
		switch r {
		case x86asm.AH:
			return x86.OffRAX, 8, true
		case x86asm.CH:
			return x86.OffRCX, 8, true
		case x86asm.DH:
			return x86.OffRDX, 8, true
		case x86asm.BH:
			return x86.OffRBX, 8, true
		}
	case r >= x86asm.AL && r <= x86asm.R15B:
		// x86asm numbers AH..BH between BL and SPB, so the low-byte
		// views from SPB onward sit four places past their register.
		idx := int(r - x86asm.AL)
		if idx >= 8 {
			idx -= 4
		}
		return x86.GPROffset(idx), 8, true
	}
	return 0, 0, false
}

func isHighByte(r x86asm.Reg) bool {
	switch r {
	case x86asm.AH, x86asm.CH, x86asm.DH, x86asm.BH:
		return true
	default:
		return false
	}
}

// readReg reads an x86asm register operand, widening it to 64 bits.
func (l *lifter) readReg(r x86asm.Reg) (ir.NodeID, error) {
	off, width, ok := gpr(r)
	if !ok {
		return 0, &ir.UnsupportedInstruction{IClass: "register:" + r.String()}
	}
	full, err := l.b.ReadReg(ir.U64(), off)
	if err != nil {
		return 0, err
	}
	if isHighByte(r) {
		shifted, err := l.shiftConst(full, ir.ShiftLSR, 8)
		if err != nil {
			return 0, err
		}
		return l.b.BitExtract(ir.U8(), shifted, 0, 8)
	}
	if width == 64 {
		return full, nil
	}
	return l.b.BitExtract(ir.U(width), full, 0, width)
}

// writeReg writes value (whose type width must be <= 64) into the
// view of register r named by the mnemonic, applying the correct
// merge/zero-extend behavior for that width: a 32-bit write zero-
// extends to fill the full 64-bit register (the one piece of x86 GPR
// behavior every other width lacks), 8/16-bit writes and the legacy
// high-byte forms merge into the existing value.
func (l *lifter) writeReg(r x86asm.Reg, value ir.NodeID) error {
	off, width, ok := gpr(r)
	if !ok {
		return &ir.UnsupportedInstruction{IClass: "register:" + r.String()}
	}
	if width == 64 {
		_, err := l.b.WriteReg(off, value)
		return err
	}
	if width == 32 {
		widened, err := l.b.ZeroExtend(ir.U64(), value)
		if err != nil {
			return err
		}
		_, err = l.b.WriteReg(off, widened)
		return err
	}

	current, err := l.b.ReadReg(ir.U64(), off)
	if err != nil {
		return err
	}
	shift := 0
	if isHighByte(r) {
		shift = 8
	}
	widened, err := l.b.ZeroExtend(ir.U64(), value)
	if err != nil {
		return err
	}
	positioned := widened
	if shift != 0 {
		positioned, err = l.shiftConst(widened, ir.ShiftLSL, shift)
		if err != nil {
			return err
		}
	}
	mask := ^((uint64(1)<<uint(width) - 1) << uint(shift))
	maskNode, err := l.b.Constant(ir.U64(), mask)
	if err != nil {
		return err
	}
	cleared, err := l.b.BinaryArith(ir.U64(), ir.ArithAnd, current, maskNode)
	if err != nil {
		return err
	}
	merged, err := l.b.BinaryArith(ir.U64(), ir.ArithOr, cleared, positioned)
	if err != nil {
		return err
	}
	_, err = l.b.WriteReg(off, merged)
	return err
}

// shiftConst is a small convenience wrapper used throughout the family
// translators: shift value by a compile-time-known amount. value is
// widened to 64 bits first so the Shift node's operand always agrees
// with its declared type, whatever width value was produced at.
func (l *lifter) shiftConst(value ir.NodeID, op ir.ShiftOp, amount int) (ir.NodeID, error) {
	wide, err := l.b.ZeroExtend(ir.U64(), value)
	if err != nil {
		return 0, err
	}
	amt, err := l.b.Constant(ir.U64(), uint64(amount))
	if err != nil {
		return 0, err
	}
	return l.b.Shift(ir.U64(), op, wide, amt)
}
