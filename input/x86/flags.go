package x86

import (
	"arancini/abi/x86"
	"arancini/ir"
)

// writeFlags applies the per-flag update policy for one arithmetic
// result, matching the x86 status-flag rules for op at width w. Each
// *Op parameter is one of ir.FlagUpdate/FlagSet0/FlagSet1/FlagIgnore,
// letting every family translator express exactly which flags an
// instruction touches without this helper having to know the opcode.
//
// Only ArithAdd and ArithSub compute real carry/overflow. For the
// logical ops (AND/OR/XOR), FlagUpdate on cf or of writes 0, as the
// x86 manual specifies for them; FlagSet0, FlagSet1 and FlagIgnore on
// those flags behave exactly as they do for any other op.
func (l *lifter) writeFlags(w int, op ir.ArithOp, result, lhs, rhs ir.NodeID, zf, cf, of, sf, pf ir.FlagOp) error {
	t := ir.U(w)

	apply := func(flagOffset int, fop ir.FlagOp, compute func() (ir.NodeID, error)) error {
		switch fop {
		case ir.FlagIgnore:
			return nil
		case ir.FlagSet0, ir.FlagSet1:
			bit := uint64(0)
			if fop == ir.FlagSet1 {
				bit = 1
			}
			c, err := l.b.Constant(ir.U8(), bit)
			if err != nil {
				return err
			}
			_, err = l.b.WriteReg(flagOffset, c)
			return err
		default: // FlagUpdate
			v, err := compute()
			if err != nil {
				return err
			}
			_, err = l.b.WriteReg(flagOffset, v)
			return err
		}
	}

	if err := apply(x86.OffZF, zf, func() (ir.NodeID, error) { return l.flagZero(t, result) }); err != nil {
		return err
	}
	if err := apply(x86.OffSF, sf, func() (ir.NodeID, error) { return l.flagSign(t, result) }); err != nil {
		return err
	}
	if err := apply(x86.OffPF, pf, func() (ir.NodeID, error) { return l.flagParity(result) }); err != nil {
		return err
	}

	isLogical := op == ir.ArithAnd || op == ir.ArithOr || op == ir.ArithXor
	if err := apply(x86.OffCF, cf, func() (ir.NodeID, error) {
		if isLogical {
			return l.b.Constant(ir.U8(), 0)
		}
		return l.flagCarry(w, op, lhs, rhs)
	}); err != nil {
		return err
	}
	if err := apply(x86.OffOF, of, func() (ir.NodeID, error) {
		if isLogical {
			return l.b.Constant(ir.U8(), 0)
		}
		return l.flagOverflow(w, op, lhs, rhs, result)
	}); err != nil {
		return err
	}
	return nil
}

func (l *lifter) flagZero(t ir.ValueType, result ir.NodeID) (ir.NodeID, error) {
	zero, err := l.b.Constant(t, 0)
	if err != nil {
		return 0, err
	}
	return l.b.BinaryArith(ir.U8(), ir.ArithCmp, result, zero)
}

func (l *lifter) flagSign(t ir.ValueType, result ir.NodeID) (ir.NodeID, error) {
	return l.b.BitExtract(ir.U8(), result, t.Width-1, t.Width)
}

// flagParity folds the low byte of result down to its parity bit: PF
// is set when the low byte has an even number of 1 bits.
func (l *lifter) flagParity(result ir.NodeID) (ir.NodeID, error) {
	low, err := l.b.BitExtract(ir.U8(), result, 0, 8)
	if err != nil {
		return 0, err
	}
	p := low
	for _, shift := range []int{4, 2, 1} {
		shifted, err := l.shiftConst(p, ir.ShiftLSR, shift)
		if err != nil {
			return 0, err
		}
		shifted8, err := l.b.BitExtract(ir.U8(), shifted, 0, 8)
		if err != nil {
			return 0, err
		}
		p, err = l.b.BinaryArith(ir.U8(), ir.ArithXor, p, shifted8)
		if err != nil {
			return 0, err
		}
	}
	bit0, err := l.b.BitExtract(ir.U8(), p, 0, 1)
	if err != nil {
		return 0, err
	}
	one, err := l.b.Constant(ir.U8(), 1)
	if err != nil {
		return 0, err
	}
	return l.b.BinaryArith(ir.U8(), ir.ArithXor, bit0, one)
}

// flagCarry computes unsigned carry-out by widening both operands to
// 2w bits and reading back bit w of the wide result.
func (l *lifter) flagCarry(w int, op ir.ArithOp, lhs, rhs ir.NodeID) (ir.NodeID, error) {
	wide := ir.U(2 * w)
	lhsW, err := l.b.ZeroExtend(wide, lhs)
	if err != nil {
		return 0, err
	}
	rhsW, err := l.b.ZeroExtend(wide, rhs)
	if err != nil {
		return 0, err
	}
	wideOp := ir.ArithAdd
	if op == ir.ArithSub {
		wideOp = ir.ArithSub
	}
	sum, err := l.b.BinaryArith(wide, wideOp, lhsW, rhsW)
	if err != nil {
		return 0, err
	}
	return l.b.BitExtract(ir.U8(), sum, w, w+1)
}

// flagOverflow computes signed overflow from the operand and result
// sign bits: for ADD, overflow happens when both operands share a
// sign and the result's sign differs from it; for SUB, when the
// operands have different signs and the result's sign differs from
// the minuend's.
func (l *lifter) flagOverflow(w int, op ir.ArithOp, lhs, rhs, result ir.NodeID) (ir.NodeID, error) {
	signLHS, err := l.b.BitExtract(ir.U8(), lhs, w-1, w)
	if err != nil {
		return 0, err
	}
	signRHS, err := l.b.BitExtract(ir.U8(), rhs, w-1, w)
	if err != nil {
		return 0, err
	}
	signRes, err := l.b.BitExtract(ir.U8(), result, w-1, w)
	if err != nil {
		return 0, err
	}
	operandsXor, err := l.b.BinaryArith(ir.U8(), ir.ArithXor, signLHS, signRHS)
	if err != nil {
		return 0, err
	}
	var operandsAgree ir.NodeID
	if op == ir.ArithAdd {
		operandsAgree, err = l.b.Not(ir.U8(), operandsXor)
	} else {
		operandsAgree = operandsXor
	}
	if err != nil {
		return 0, err
	}
	resDiffersFromLHS, err := l.b.BinaryArith(ir.U8(), ir.ArithXor, signLHS, signRes)
	if err != nil {
		return 0, err
	}
	return l.b.BinaryArith(ir.U8(), ir.ArithAnd, operandsAgree, resDiffersFromLHS)
}
