package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateShift lifts SAR/SHR/SHL. The shift amount is masked to the
// operand width (ANDed with width-1). That matches x86, which masks to
// 5 or 6 bits, for 32- and 64-bit operands; for 8- and 16-bit operands
// a count of width or more wraps around instead of shifting everything
// out. CF is marked ignore, so the last bit shifted out is not
// recorded. OF is only defined for a shift count of one and is
// likewise marked ignore rather than guessing at multi-bit-count
// behavior.
func (l *lifter) translateShift(inst x86asm.Inst) error {
	w := argWidth(inst, inst.Args[0])
	t := ir.U(w)

	value, err := l.readOperand(inst, 0)
	if err != nil {
		return err
	}
	amount, err := l.readOperand(inst, 1)
	if err != nil {
		return err
	}
	// The count operand is CL (always 8 bits) for the register form, or
	// an immediate already sized to w; widen it to t so it agrees with
	// value's type before masking and shifting.
	amountT, err := l.b.ZeroExtend(t, amount)
	if err != nil {
		return err
	}
	mask, err := l.b.Constant(t, uint64(w-1))
	if err != nil {
		return err
	}
	maskedAmount, err := l.b.BinaryArith(t, ir.ArithAnd, amountT, mask)
	if err != nil {
		return err
	}

	var shiftOp ir.ShiftOp
	switch inst.Op {
	case x86asm.SAR:
		shiftOp = ir.ShiftASR
	case x86asm.SHR:
		shiftOp = ir.ShiftLSR
	default: // SHL
		shiftOp = ir.ShiftLSL
	}

	result, err := l.b.Shift(t, shiftOp, value, maskedAmount)
	if err != nil {
		return err
	}
	if err := l.writeOperand(inst, 0, result); err != nil {
		return err
	}

	ignore := ir.FlagIgnore
	return l.writeFlags(w, ir.ArithAdd, result, value, amount,
		ir.FlagUpdate /*zf*/, ignore /*cf: needs the shifted-out bit, not modeled here*/, ignore, /*of*/
		ir.FlagUpdate /*sf*/, ir.FlagUpdate /*pf*/)
}
