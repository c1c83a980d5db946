package x86

import (
	"arancini/abi/x86"
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// argWidth returns the bit width an x86asm.Arg carries, used to pick the
// ValueType for the value produced or consumed.
func argWidth(inst x86asm.Inst, a x86asm.Arg) int {
	switch v := a.(type) {
	case x86asm.Reg:
		_, w, ok := gpr(v)
		if ok {
			return w
		}
		return 64
	case x86asm.Mem:
		if inst.MemBytes > 0 {
			return inst.MemBytes * 8
		}
		return 64
	case x86asm.Imm:
		if inst.DataSize > 0 {
			return inst.DataSize
		}
		return 32
	default:
		return 64
	}
}

// effectiveAddress builds the IR for a Mem operand's address:
// base + index*scale + disp, with an FS/GS segment base added last
// when the encoding names one.
func (l *lifter) effectiveAddress(m x86asm.Mem) (ir.NodeID, error) {
	var addr ir.NodeID
	var haveBase bool

	if m.Base != 0 {
		b, err := l.readReg(m.Base)
		if err != nil {
			return 0, err
		}
		addr = b
		haveBase = true
	}

	if m.Index != 0 && m.Scale != 0 {
		idx, err := l.readReg(m.Index)
		if err != nil {
			return 0, err
		}
		scaled := idx
		if m.Scale > 1 {
			scaled, err = l.shiftConst(idx, ir.ShiftLSL, log2(uint(m.Scale)))
			if err != nil {
				return 0, err
			}
		}
		if haveBase {
			addr, err = l.b.BinaryArith(ir.U64(), ir.ArithAdd, addr, scaled)
			if err != nil {
				return 0, err
			}
		} else {
			addr, haveBase = scaled, true
		}
	}

	if m.Disp != 0 || !haveBase {
		dispNode, err := l.b.Constant(ir.U64(), uint64(m.Disp))
		if err != nil {
			return 0, err
		}
		if haveBase {
			addr, err = l.b.BinaryArith(ir.U64(), ir.ArithAdd, addr, dispNode)
			if err != nil {
				return 0, err
			}
		} else {
			addr = dispNode
		}
	}

	switch m.Segment {
	case x86asm.FS:
		addr, _ = l.addSegmentBase(addr, x86.OffFS)
	case x86asm.GS:
		addr, _ = l.addSegmentBase(addr, x86.OffGS)
	}
	return addr, nil
}

func (l *lifter) addSegmentBase(addr ir.NodeID, segOffset int) (ir.NodeID, error) {
	base, err := l.b.ReadReg(ir.U64(), segOffset)
	if err != nil {
		return 0, err
	}
	return l.b.BinaryArith(ir.U64(), ir.ArithAdd, addr, base)
}

func log2(n uint) int {
	r := 0
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

// readOperand reads the i-th argument of inst as an IR value.
func (l *lifter) readOperand(inst x86asm.Inst, i int) (ir.NodeID, error) {
	switch a := inst.Args[i].(type) {
	case x86asm.Reg:
		return l.readReg(a)
	case x86asm.Imm:
		w := argWidth(inst, a)
		return l.b.Constant(ir.U(w), uint64(int64(a)))
	case x86asm.Mem:
		addr, err := l.effectiveAddress(a)
		if err != nil {
			return 0, err
		}
		return l.b.ReadMem(ir.U(argWidth(inst, a)), addr)
	default:
		return 0, &ir.UnsupportedInstruction{IClass: "operand kind"}
	}
}

// writeOperand writes value into the i-th argument of inst.
func (l *lifter) writeOperand(inst x86asm.Inst, i int, value ir.NodeID) error {
	switch a := inst.Args[i].(type) {
	case x86asm.Reg:
		return l.writeReg(a, value)
	case x86asm.Mem:
		addr, err := l.effectiveAddress(a)
		if err != nil {
			return err
		}
		_, err = l.b.WriteMem(addr, value)
		return err
	default:
		return &ir.UnsupportedInstruction{IClass: "operand kind"}
	}
}
