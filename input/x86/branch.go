package x86

import (
	"arancini/abi/x86"
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateBranch lifts JMP, the sixteen Jcc condition codes, CALL and
// RET. Every form ends the packet in a write_pc followed by the
// control-transfer action node (br for JMP/Jcc/CALL, ret for RET); a
// conditional jump picks between the taken and fallthrough address
// with a select rather than a separate conditional-branch node kind,
// since the IR has none.
func (l *lifter) translateBranch(inst x86asm.Inst, nextPC uint64) error {
	switch inst.Op {
	case x86asm.RET:
		return l.translateRet()
	case x86asm.CALL:
		return l.translateCall(inst, nextPC)
	case x86asm.JMP:
		return l.translateJump(inst, nextPC, nil)
	default:
		cond, err := l.conditionValue(inst.Op)
		if err != nil {
			return err
		}
		return l.translateJump(inst, nextPC, cond)
	}
}

// branchTarget resolves a direct (Rel) or indirect (Reg/Mem) control
// transfer target to an IR value.
func (l *lifter) branchTarget(inst x86asm.Inst, nextPC uint64) (ir.NodeID, error) {
	switch a := inst.Args[0].(type) {
	case x86asm.Rel:
		return l.b.Constant(ir.U64(), nextPC+uint64(int64(a)))
	case x86asm.Reg:
		return l.readReg(a)
	case x86asm.Mem:
		addr, err := l.effectiveAddress(a)
		if err != nil {
			return 0, err
		}
		return l.b.ReadMem(ir.U64(), addr)
	default:
		return 0, unsupported(inst)
	}
}

func (l *lifter) translateJump(inst x86asm.Inst, nextPC uint64, cond *ir.NodeID) error {
	target, err := l.branchTarget(inst, nextPC)
	if err != nil {
		return err
	}
	if cond != nil {
		fallthroughAddr, err := l.b.Constant(ir.U64(), nextPC)
		if err != nil {
			return err
		}
		target, err = l.b.Select(ir.U64(), *cond, target, fallthroughAddr)
		if err != nil {
			return err
		}
	}
	if _, err := l.b.WritePC(target); err != nil {
		return err
	}
	_, err = l.b.Br(false)
	return err
}

func (l *lifter) translateCall(inst x86asm.Inst, nextPC uint64) error {
	target, err := l.branchTarget(inst, nextPC)
	if err != nil {
		return err
	}
	retAddr, err := l.b.Constant(ir.U64(), nextPC)
	if err != nil {
		return err
	}
	if err := l.pushValue(retAddr); err != nil {
		return err
	}
	if _, err := l.b.WritePC(target); err != nil {
		return err
	}
	_, err = l.b.Br(true)
	return err
}

func (l *lifter) translateRet() error {
	value, _, err := l.popValue()
	if err != nil {
		return err
	}
	if _, err := l.b.WritePC(value); err != nil {
		return err
	}
	_, err = l.b.Ret()
	return err
}

// conditionValue builds the boolean (U8, 0 or 1) IR value for one of
// the sixteen Jcc condition codes, read straight from the flag slots
// in CPU state.
func (l *lifter) conditionValue(op x86asm.Op) (*ir.NodeID, error) {
	flag := func(off int) (ir.NodeID, error) { return l.b.ReadReg(ir.U8(), off) }
	negate := func(v ir.NodeID) (ir.NodeID, error) {
		one, err := l.b.Constant(ir.U8(), 1)
		if err != nil {
			return 0, err
		}
		return l.b.BinaryArith(ir.U8(), ir.ArithXor, v, one)
	}
	or := func(a, b ir.NodeID) (ir.NodeID, error) { return l.b.BinaryArith(ir.U8(), ir.ArithOr, a, b) }
	and := func(a, b ir.NodeID) (ir.NodeID, error) { return l.b.BinaryArith(ir.U8(), ir.ArithAnd, a, b) }
	xor := func(a, b ir.NodeID) (ir.NodeID, error) { return l.b.BinaryArith(ir.U8(), ir.ArithXor, a, b) }
	eq := func(a, b ir.NodeID) (ir.NodeID, error) {
		x, err := xor(a, b)
		if err != nil {
			return 0, err
		}
		return negate(x)
	}

	var v ir.NodeID
	var err error
	switch op {
	case x86asm.JE:
		v, err = flag(x86.OffZF)
	case x86asm.JNE:
		zf, e := flag(x86.OffZF)
		if e != nil {
			return nil, e
		}
		v, err = negate(zf)
	case x86asm.JB:
		v, err = flag(x86.OffCF)
	case x86asm.JAE:
		cf, e := flag(x86.OffCF)
		if e != nil {
			return nil, e
		}
		v, err = negate(cf)
	case x86asm.JBE:
		cf, e := flag(x86.OffCF)
		if e != nil {
			return nil, e
		}
		zf, e := flag(x86.OffZF)
		if e != nil {
			return nil, e
		}
		v, err = or(cf, zf)
	case x86asm.JA:
		cf, e := flag(x86.OffCF)
		if e != nil {
			return nil, e
		}
		zf, e := flag(x86.OffZF)
		if e != nil {
			return nil, e
		}
		notCF, e := negate(cf)
		if e != nil {
			return nil, e
		}
		notZF, e := negate(zf)
		if e != nil {
			return nil, e
		}
		v, err = and(notCF, notZF)
	case x86asm.JS:
		v, err = flag(x86.OffSF)
	case x86asm.JNS:
		sf, e := flag(x86.OffSF)
		if e != nil {
			return nil, e
		}
		v, err = negate(sf)
	case x86asm.JO:
		v, err = flag(x86.OffOF)
	case x86asm.JNO:
		of, e := flag(x86.OffOF)
		if e != nil {
			return nil, e
		}
		v, err = negate(of)
	case x86asm.JP:
		v, err = flag(x86.OffPF)
	case x86asm.JNP:
		pf, e := flag(x86.OffPF)
		if e != nil {
			return nil, e
		}
		v, err = negate(pf)
	case x86asm.JL:
		sf, e := flag(x86.OffSF)
		if e != nil {
			return nil, e
		}
		of, e := flag(x86.OffOF)
		if e != nil {
			return nil, e
		}
		v, err = xor(sf, of)
	case x86asm.JGE:
		sf, e := flag(x86.OffSF)
		if e != nil {
			return nil, e
		}
		of, e := flag(x86.OffOF)
		if e != nil {
			return nil, e
		}
		v, err = eq(sf, of)
	case x86asm.JLE:
		sf, e := flag(x86.OffSF)
		if e != nil {
			return nil, e
		}
		of, e := flag(x86.OffOF)
		if e != nil {
			return nil, e
		}
		zf, e := flag(x86.OffZF)
		if e != nil {
			return nil, e
		}
		sfXorOf, e := xor(sf, of)
		if e != nil {
			return nil, e
		}
		v, err = or(zf, sfXorOf)
	case x86asm.JG:
		sf, e := flag(x86.OffSF)
		if e != nil {
			return nil, e
		}
		of, e := flag(x86.OffOF)
		if e != nil {
			return nil, e
		}
		zf, e := flag(x86.OffZF)
		if e != nil {
			return nil, e
		}
		sfEqOf, e := eq(sf, of)
		if e != nil {
			return nil, e
		}
		notZF, e := negate(zf)
		if e != nil {
			return nil, e
		}
		v, err = and(notZF, sfEqOf)
	default:
		return nil, &ir.UnsupportedInstruction{IClass: op.String()}
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
