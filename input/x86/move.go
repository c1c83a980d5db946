package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateMove lifts MOV, MOVZX, MOVSX, MOVSXD and LEA. MOV is a
// plain read-then-write at the destination's width; the extending
// forms read the (narrower) source, then zero- or sign-extend to the
// destination's width before writing; LEA writes a computed address
// without ever dereferencing memory.
func (l *lifter) translateMove(inst x86asm.Inst) error {
	switch inst.Op {
	case x86asm.LEA:
		mem, ok := inst.Args[1].(x86asm.Mem)
		if !ok {
			return unsupported(inst)
		}
		addr, err := l.effectiveAddress(mem)
		if err != nil {
			return err
		}
		return l.writeOperand(inst, 0, addr)

	case x86asm.MOV:
		value, err := l.readOperand(inst, 1)
		if err != nil {
			return err
		}
		return l.writeOperand(inst, 0, value)

	default: // MOVZX, MOVSX, MOVSXD
		dstWidth := argWidth(inst, inst.Args[0])
		value, err := l.readOperand(inst, 1)
		if err != nil {
			return err
		}
		var extended ir.NodeID
		if inst.Op == x86asm.MOVZX {
			extended, err = l.b.ZeroExtend(ir.U(dstWidth), value)
		} else {
			extended, err = l.b.SignExtend(ir.U(dstWidth), value)
		}
		if err != nil {
			return err
		}
		return l.writeOperand(inst, 0, extended)
	}
}
