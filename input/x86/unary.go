package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateUnary lifts NOT and NEG. NOT touches no flags at all; NEG
// is arithmetically 0-value and updates flags the same way SUB does.
func (l *lifter) translateUnary(inst x86asm.Inst) error {
	w := argWidth(inst, inst.Args[0])
	t := ir.U(w)
	value, err := l.readOperand(inst, 0)
	if err != nil {
		return err
	}

	if inst.Op == x86asm.NOT {
		result, err := l.b.Not(t, value)
		if err != nil {
			return err
		}
		return l.writeOperand(inst, 0, result)
	}

	zero, err := l.b.Constant(t, 0)
	if err != nil {
		return err
	}
	result, err := l.b.BinaryArith(t, ir.ArithSub, zero, value)
	if err != nil {
		return err
	}
	if err := l.writeOperand(inst, 0, result); err != nil {
		return err
	}
	flagOp := ir.FlagUpdate
	return l.writeFlags(w, ir.ArithSub, result, zero, value, flagOp, flagOp, flagOp, flagOp, flagOp)
}
