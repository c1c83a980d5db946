package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateSyscall lifts SYSCALL to a bare call to handle_syscall; the
// syscall number and arguments already live in the guest registers the
// calling convention expects, so no operands need to be threaded
// through the IR call itself.
func (l *lifter) translateSyscall(inst x86asm.Inst) error {
	fn, err := l.resolver.Resolve("handle_syscall")
	if err != nil {
		return err
	}
	_, err = l.b.InternalCall(fn, ir.EffectSyscall)
	return err
}
