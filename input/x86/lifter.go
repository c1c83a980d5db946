// Package x86 lifts x86-64 guest machine code into arancini's IR,
// decoding with golang.org/x/arch/x86/x86asm and dispatching each
// decoded instruction to a per-family translator.
package x86

import (
	"fmt"

	"arancini/ir"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// lifter holds the state threaded through one chunk's worth of
// decoding: the builder being filled in, and the resolver used to
// look up the fixed internal-function set.
type lifter struct {
	b        *ir.Builder
	resolver *ir.FunctionResolver
	code     []byte
	base     uint64
}

// NewLifter constructs a lifter over resolver, which must be able to
// resolve at least handle_int, handle_syscall, handle_poison and hlt
// (see FunctionProvider).
func NewLifter(resolver *ir.FunctionResolver) *lifter {
	return &lifter{b: ir.NewBuilder(), resolver: resolver}
}

// Lift decodes and lifts code (guest bytes starting at guest address
// base) one instruction at a time into a single chunk, splitting
// blocks wherever a packet's type ends the current block. It returns
// UnsupportedInstruction, unmodified, the moment a family translator
// can't handle an opcode; the chunk built so far is discarded, since a
// failed translation must never enter the cache.
func (l *lifter) Lift(code []byte, base uint64) (*ir.Chunk, error) {
	l.code = code
	l.base = base
	l.b = ir.NewBuilder()

	if err := l.b.BeginChunk(); err != nil {
		return nil, err
	}

	off := 0
	for off < len(code) {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "x86: decode at offset %d (guest addr %#x)", off, base+uint64(off))
		}
		addr := base + uint64(off)
		disasm := x86asm.GNUSyntax(inst, addr, nil)

		if err := l.b.BeginPacket(addr, disasm); err != nil {
			return nil, err
		}
		pt, err := l.lift(inst, addr, uint64(off+inst.Len)+base)
		if err != nil {
			return nil, err
		}
		if pt == 0 { // PacketNormal: EndPacket has already kept the block open
		}
		off += inst.Len
	}

	return l.b.EndChunk()
}

// lift dispatches one decoded instruction to its family translator and
// closes the packet. nextPC is the fallthrough address, used by
// translators that need it (e.g. CALL's return-address push).
func (l *lifter) lift(inst x86asm.Inst, addr, nextPC uint64) (ir.PacketType, error) {
	var err error
	switch family(inst.Op) {
	case famArithmetic:
		err = l.translateArithmetic(inst)
	case famShift:
		err = l.translateShift(inst)
	case famStack:
		err = l.translateStack(inst)
	case famControlFlag:
		err = l.translateControlFlag(inst)
	case famMove:
		err = l.translateMove(inst)
	case famUnary:
		err = l.translateUnary(inst)
	case famBranch:
		err = l.translateBranch(inst, nextPC)
	case famInterrupt:
		err = l.translateInterrupt(inst)
	case famSyscall:
		err = l.translateSyscall(inst)
	case famHalt:
		err = l.translateHalt(inst)
	case famIO:
		err = l.translateIO(inst)
	case famNop:
		// no IR at all: a NOP packet is empty save start/end.
	default:
		err = &ir.UnsupportedInstruction{IClass: inst.Op.String()}
	}
	if err != nil {
		return 0, err
	}
	return l.b.EndPacket()
}

type instFamily int

const (
	famUnknown instFamily = iota
	famArithmetic
	famShift
	famStack
	famControlFlag
	famMove
	famUnary
	famBranch
	famInterrupt
	famSyscall
	famHalt
	famIO
	famNop
)

func family(op x86asm.Op) instFamily {
	switch op {
	case x86asm.ADD, x86asm.SUB, x86asm.AND, x86asm.OR, x86asm.XOR, x86asm.CMP:
		return famArithmetic
	case x86asm.SAR, x86asm.SHR, x86asm.SHL:
		return famShift
	case x86asm.PUSH, x86asm.POP:
		return famStack
	case x86asm.STD, x86asm.CLD, x86asm.STC, x86asm.CLC:
		return famControlFlag
	case x86asm.MOV, x86asm.MOVZX, x86asm.MOVSX, x86asm.MOVSXD, x86asm.LEA:
		return famMove
	case x86asm.NOT, x86asm.NEG:
		return famUnary
	case x86asm.JMP, x86asm.JE, x86asm.JNE, x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE,
		x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JS, x86asm.JNS,
		x86asm.JO, x86asm.JNO, x86asm.JP, x86asm.JNP, x86asm.CALL, x86asm.RET:
		return famBranch
	case x86asm.INT:
		return famInterrupt
	case x86asm.SYSCALL:
		return famSyscall
	case x86asm.HLT:
		return famHalt
	case x86asm.INSB, x86asm.INSD, x86asm.OUTSB, x86asm.OUTSD:
		return famIO
	case x86asm.NOP:
		return famNop
	default:
		return famUnknown
	}
}

// EndsBlock reports whether a packet of this type terminates a block.
// It forwards to ir.PacketType.EndsBlock, the rule ir.Builder.EndPacket
// applies when it splits blocks.
func EndsBlock(pt ir.PacketType) bool { return pt.EndsBlock() }

func unsupported(inst x86asm.Inst) error {
	return &ir.UnsupportedInstruction{IClass: fmt.Sprintf("%s", inst.Op)}
}
