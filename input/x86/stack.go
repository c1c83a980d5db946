package x86

import (
	"arancini/abi/x86"
	"arancini/ir"

	"golang.org/x/arch/x86/x86asm"
)

// translateStack lifts PUSH/POP: PUSH is sub rsp,8 then
// write_mem(rsp, value); POP is read_mem(rsp) then add rsp,8. Both
// operate at 64-bit width
// regardless of the encoded operand size, since this lifter only
// targets 64-bit mode where PUSH/POP default to 64 bits.
func (l *lifter) translateStack(inst x86asm.Inst) error {
	if inst.Op == x86asm.PUSH {
		return l.translatePush(inst)
	}
	return l.translatePop(inst)
}

func (l *lifter) translatePush(inst x86asm.Inst) error {
	value, err := l.readOperand(inst, 0)
	if err != nil {
		return err
	}
	rsp, err := l.b.ReadReg(ir.U64(), x86.OffRSP)
	if err != nil {
		return err
	}
	eight, err := l.b.Constant(ir.U64(), 8)
	if err != nil {
		return err
	}
	newRsp, err := l.b.BinaryArith(ir.U64(), ir.ArithSub, rsp, eight)
	if err != nil {
		return err
	}
	if _, err := l.b.WriteReg(x86.OffRSP, newRsp); err != nil {
		return err
	}
	_, err = l.b.WriteMem(newRsp, value)
	return err
}

func (l *lifter) translatePop(inst x86asm.Inst) error {
	rsp, err := l.b.ReadReg(ir.U64(), x86.OffRSP)
	if err != nil {
		return err
	}
	value, err := l.b.ReadMem(ir.U64(), rsp)
	if err != nil {
		return err
	}
	if err := l.writeOperand(inst, 0, value); err != nil {
		return err
	}
	eight, err := l.b.Constant(ir.U64(), 8)
	if err != nil {
		return err
	}
	newRsp, err := l.b.BinaryArith(ir.U64(), ir.ArithAdd, rsp, eight)
	if err != nil {
		return err
	}
	_, err = l.b.WriteReg(x86.OffRSP, newRsp)
	return err
}

// popValue is the shared helper branch.go uses for RET and CALL's
// symmetric push, so the two control-flow translators don't duplicate
// the rsp arithmetic above.
func (l *lifter) popValue() (ir.NodeID, ir.NodeID, error) {
	rsp, err := l.b.ReadReg(ir.U64(), x86.OffRSP)
	if err != nil {
		return 0, 0, err
	}
	value, err := l.b.ReadMem(ir.U64(), rsp)
	if err != nil {
		return 0, 0, err
	}
	eight, err := l.b.Constant(ir.U64(), 8)
	if err != nil {
		return 0, 0, err
	}
	newRsp, err := l.b.BinaryArith(ir.U64(), ir.ArithAdd, rsp, eight)
	if err != nil {
		return 0, 0, err
	}
	if _, err := l.b.WriteReg(x86.OffRSP, newRsp); err != nil {
		return 0, 0, err
	}
	return value, newRsp, nil
}

func (l *lifter) pushValue(value ir.NodeID) error {
	rsp, err := l.b.ReadReg(ir.U64(), x86.OffRSP)
	if err != nil {
		return err
	}
	eight, err := l.b.Constant(ir.U64(), 8)
	if err != nil {
		return err
	}
	newRsp, err := l.b.BinaryArith(ir.U64(), ir.ArithSub, rsp, eight)
	if err != nil {
		return err
	}
	if _, err := l.b.WriteReg(x86.OffRSP, newRsp); err != nil {
		return err
	}
	_, err = l.b.WriteMem(newRsp, value)
	return err
}
