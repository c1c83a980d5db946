package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateArithmetic lifts ADD/SUB/AND/OR/XOR/CMP. All six share the
// same two-operand, destination-is-first-operand encoding, differing
// only in the binary op applied and whether the result is written
// back (CMP computes flags only, grounded on the original translator
// family's "compare discards its result" behavior in the reference
// implementation's arithmetic translator).
func (l *lifter) translateArithmetic(inst x86asm.Inst) error {
	op, writesBack := arithOpFor(inst.Op)
	w := argWidth(inst, inst.Args[0])
	t := ir.U(w)

	lhs, err := l.readOperand(inst, 0)
	if err != nil {
		return err
	}
	rhs, err := l.readOperand(inst, 1)
	if err != nil {
		return err
	}

	arithForResult := op
	if op == ir.ArithCmp {
		arithForResult = ir.ArithSub
	}
	result, err := l.b.BinaryArith(t, arithForResult, lhs, rhs)
	if err != nil {
		return err
	}

	flagOp := ir.FlagUpdate
	if err := l.writeFlags(w, arithForResult, result, lhs, rhs, flagOp, flagOp, flagOp, flagOp, flagOp); err != nil {
		return err
	}

	if writesBack {
		return l.writeOperand(inst, 0, result)
	}
	return nil
}

func arithOpFor(op x86asm.Op) (ir.ArithOp, bool) {
	switch op {
	case x86asm.ADD:
		return ir.ArithAdd, true
	case x86asm.SUB:
		return ir.ArithSub, true
	case x86asm.AND:
		return ir.ArithAnd, true
	case x86asm.OR:
		return ir.ArithOr, true
	case x86asm.XOR:
		return ir.ArithXor, true
	case x86asm.CMP:
		return ir.ArithCmp, false
	default:
		return ir.ArithAdd, true
	}
}
