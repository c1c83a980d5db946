package x86

import (
	"arancini/abi/x86"
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateControlFlag lifts STD/CLD/STC/CLC: each sets or clears
// exactly one status flag and produces no other action node, matching
// the "control-family instructions produce action nodes only" rule.
func (l *lifter) translateControlFlag(inst x86asm.Inst) error {
	var offset int
	var bit uint64
	switch inst.Op {
	case x86asm.STD:
		offset, bit = x86.OffDF, 1
	case x86asm.CLD:
		offset, bit = x86.OffDF, 0
	case x86asm.STC:
		offset, bit = x86.OffCF, 1
	case x86asm.CLC:
		offset, bit = x86.OffCF, 0
	default:
		return unsupported(inst)
	}
	c, err := l.b.Constant(ir.U8(), bit)
	if err != nil {
		return err
	}
	_, err = l.b.WriteReg(offset, c)
	return err
}
