package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateInterrupt lifts INT, which becomes a call to handle_int
// with the vector number as its only argument. x86asm decodes the
// one-byte INT3 (0xCC) as INT with immediate 3, so it takes this path
// too; the vector is 3 when the operand is not an immediate.
func (l *lifter) translateInterrupt(inst x86asm.Inst) error {
	vector := uint64(3)
	if inst.Op == x86asm.INT {
		if imm, ok := inst.Args[0].(x86asm.Imm); ok {
			vector = uint64(imm)
		}
	}
	vecNode, err := l.b.Constant(ir.U32(), vector)
	if err != nil {
		return err
	}
	fn, err := l.resolver.Resolve("handle_int")
	if err != nil {
		return err
	}
	_, err = l.b.InternalCall(fn, ir.EffectInterrupt, vecNode)
	return err
}
