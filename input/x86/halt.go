package x86

import (
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateHalt lifts HLT to a call to hlt, tagged EffectEndOfBlock so
// the packet (and therefore the block) always terminates here even
// though hlt() itself has no guest-visible effect worth modeling.
func (l *lifter) translateHalt(inst x86asm.Inst) error {
	fn, err := l.resolver.Resolve("hlt")
	if err != nil {
		return err
	}
	_, err = l.b.InternalCall(fn, ir.EffectEndOfBlock)
	return err
}
