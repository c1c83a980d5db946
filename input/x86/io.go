package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateIO lifts INSB/INSD/OUTSB/OUTSD. Port I/O has no meaningful
// guest-visible effect once a process runs under this translator, so
// every form unconditionally poisons with the (best-effort) DX port
// value rather than raising UnsupportedInstruction — the repository's
// preferred handling for the whole IO family.
func (l *lifter) translateIO(inst x86asm.Inst) error {
	port, err := l.b.ReadReg(ir.U16(), dxOffset())
	if err != nil {
		return err
	}
	widened, err := l.b.ZeroExtend(ir.U64(), port)
	if err != nil {
		return err
	}
	fn, err := l.resolver.Resolve("handle_poison")
	if err != nil {
		return err
	}
	_, err = l.b.InternalCall(fn, ir.EffectNormal, widened)
	return err
}

func dxOffset() int {
	off, _, _ := gpr(x86asm.DX)
	return off
}
