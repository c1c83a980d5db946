package ir

import "testing"

func buildNop(t *testing.T, b *Builder) PacketType {
	t.Helper()
	if err := b.BeginPacket(0x1000, "nop"); err != nil {
		t.Fatalf("BeginPacket: %v", err)
	}
	pt, err := b.EndPacket()
	if err != nil {
		t.Fatalf("EndPacket: %v", err)
	}
	return pt
}

func TestEmptyPacketIsNormal(t *testing.T) {
	b := NewBuilder()
	if err := b.BeginChunk(); err != nil {
		t.Fatal(err)
	}
	pt := buildNop(t, b)
	if pt != PacketNormal {
		t.Fatalf("got %v, want normal", pt)
	}
	if _, err := b.EndChunk(); err != nil {
		t.Fatal(err)
	}
}

func TestWriteRegIsNormal(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "mov rax, 42"))
	c, err := b.Constant(U64(), 42)
	must(t, err)
	_, err = b.WriteReg(0, c)
	must(t, err)
	pt, err := b.EndPacket()
	must(t, err)
	if pt != PacketNormal {
		t.Fatalf("got %v, want normal", pt)
	}
}

func TestBrProducesBranchOrCall(t *testing.T) {
	for _, isCall := range []bool{false, true} {
		b := NewBuilder()
		must(t, b.BeginChunk())
		must(t, b.BeginPacket(0x1000, "jmp"))
		target, err := b.Constant(U64(), 0x2000)
		must(t, err)
		_, err = b.WritePC(target)
		must(t, err)
		_, err = b.Br(isCall)
		must(t, err)
		pt, err := b.EndPacket()
		must(t, err)
		want := PacketBranch
		if isCall {
			want = PacketCall
		}
		if pt != want {
			t.Fatalf("IsCall=%v: got %v, want %v", isCall, pt, want)
		}
	}
}

func TestRetProducesReturn(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "ret"))
	addr, err := b.ReadReg(U64(), 5*8) // rsp
	must(t, err)
	val, err := b.ReadMem(U64(), addr)
	must(t, err)
	_, err = b.WritePC(val)
	must(t, err)
	_, err = b.Ret()
	must(t, err)
	pt, err := b.EndPacket()
	must(t, err)
	if pt != PacketReturn {
		t.Fatalf("got %v, want return", pt)
	}
}

func TestInternalCallEffects(t *testing.T) {
	resolver := NewFunctionResolver(testProvider{})
	cases := []struct {
		name   string
		effect InternalCallEffect
		want   PacketType
	}{
		{"handle_syscall", EffectSyscall, PacketSyscall},
		{"handle_int", EffectInterrupt, PacketInterrupt},
		{"hlt", EffectEndOfBlock, PacketEndOfBlock},
		{"handle_poison", EffectNormal, PacketNormal},
	}
	for _, tc := range cases {
		fn, err := resolver.Resolve(tc.name)
		must(t, err)
		b := NewBuilder()
		must(t, b.BeginChunk())
		must(t, b.BeginPacket(0x1000, tc.name))
		_, err = b.InternalCall(fn, tc.effect)
		must(t, err)
		pt, err := b.EndPacket()
		must(t, err)
		if pt != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, pt, tc.want)
		}
	}
}

func TestResolveUnknownNameIsStickyFailure(t *testing.T) {
	resolver := NewFunctionResolver(testProvider{})
	calls := 0
	_ = calls
	_, err1 := resolver.Resolve("nonexistent")
	if err1 == nil {
		t.Fatal("expected an error for an unknown function name")
	}
	_, err2 := resolver.Resolve("nonexistent")
	if err2 == nil || err2.Error() != err1.Error() {
		t.Fatalf("expected the same sticky error on the second call, got %v and %v", err1, err2)
	}
}

func TestOperandMustReferenceEarlierNode(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "bad"))
	_, err := b.WriteReg(0, NodeID(99))
	if err == nil {
		t.Fatal("expected an IrUsageError for a forward reference")
	}
	if _, ok := err.(*IrUsageError); !ok {
		t.Fatalf("got %T, want *IrUsageError", err)
	}
}

func TestNodeOutsideOpenPacketIsUsageError(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	_, err := b.Constant(U64(), 1)
	if err == nil {
		t.Fatal("expected an error constructing a node with no open packet")
	}
	if _, ok := err.(*IrUsageError); !ok {
		t.Fatalf("got %T, want *IrUsageError", err)
	}
}

func TestBinaryArithRejectsOperandTypeMismatch(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "add"))
	lhs, err := b.Constant(U32(), 1)
	must(t, err)
	rhs, err := b.Constant(U64(), 2)
	must(t, err)
	_, err = b.BinaryArith(U32(), ArithAdd, lhs, rhs)
	if err == nil {
		t.Fatal("expected an error for mismatched operand types")
	}
	if _, ok := err.(*IrUsageError); !ok {
		t.Fatalf("got %T, want *IrUsageError", err)
	}
}

func TestBinaryArithRejectsResultTypeMismatch(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "add"))
	lhs, err := b.Constant(U32(), 1)
	must(t, err)
	rhs, err := b.Constant(U32(), 2)
	must(t, err)
	_, err = b.BinaryArith(U64(), ArithAdd, lhs, rhs)
	if err == nil {
		t.Fatal("expected an error when the declared result type disagrees with the operands")
	}
	if _, ok := err.(*IrUsageError); !ok {
		t.Fatalf("got %T, want *IrUsageError", err)
	}
}

func TestBinaryArithCmpMayDeclareAnyResultType(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "cmp"))
	lhs, err := b.Constant(U32(), 1)
	must(t, err)
	rhs, err := b.Constant(U32(), 2)
	must(t, err)
	// A compare's result is a boolean regardless of its operands' width,
	// so it is exempt from the result-type agreement check.
	if _, err := b.BinaryArith(U8(), ArithCmp, lhs, rhs); err != nil {
		t.Fatalf("unexpected error for a boolean-result compare: %v", err)
	}
}

func TestShiftRejectsTypeMismatch(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "shl"))
	value, err := b.Constant(U32(), 1)
	must(t, err)
	amount, err := b.Constant(U64(), 3)
	must(t, err)
	_, err = b.Shift(U32(), ShiftLSL, value, amount)
	if err == nil {
		t.Fatal("expected an error for a shift whose amount type disagrees with its value type")
	}
	if _, ok := err.(*IrUsageError); !ok {
		t.Fatalf("got %T, want *IrUsageError", err)
	}
}

func TestBitExtractRejectsOutOfBoundsRange(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "extract"))
	value, err := b.Constant(U32(), 1)
	must(t, err)
	_, err = b.BitExtract(U8(), value, 24, 40)
	if err == nil {
		t.Fatal("expected an error for a range extending past the operand's width")
	}
	if _, ok := err.(*IrUsageError); !ok {
		t.Fatalf("got %T, want *IrUsageError", err)
	}
}

type testProvider struct{}

func (testProvider) Create(name string) (*InternalFunction, bool) {
	switch name {
	case "handle_int":
		return &InternalFunction{Name: name, Type: FunctionType{Ret: None, Args: []ValueType{U32()}}}, true
	case "handle_syscall":
		return &InternalFunction{Name: name, Type: FunctionType{Ret: None}}, true
	case "handle_poison":
		return &InternalFunction{Name: name, Type: FunctionType{Ret: None, Args: []ValueType{U64()}}}, true
	case "hlt":
		return &InternalFunction{Name: name, Type: FunctionType{Ret: None}}, true
	default:
		return nil, false
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
