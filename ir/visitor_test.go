package ir

import "testing"

type countingVisitor struct {
	BaseVisitor
	constants int
	nodes     int
}

func (v *countingVisitor) VisitNode(n *Node) bool {
	v.nodes++
	return true
}

func (v *countingVisitor) VisitConstant(n *Node) bool {
	v.constants++
	return v.VisitValue(n)
}

func TestWalkVisitsEveryNodeAndRespectsFallback(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "mov rax, 42"))
	c, err := b.Constant(U64(), 42)
	must(t, err)
	_, err = b.WriteReg(0, c)
	must(t, err)
	_, err = b.EndPacket()
	must(t, err)
	chunk, err := b.EndChunk()
	must(t, err)

	v := &countingVisitor{}
	Walk(chunk, v)

	if v.constants != 1 {
		t.Errorf("constants = %d, want 1", v.constants)
	}
	// start, constant, write_reg, end == 4 nodes
	if v.nodes != 4 {
		t.Errorf("nodes = %d, want 4", v.nodes)
	}
}

type skippingVisitor struct {
	BaseVisitor
	sawPacket bool
}

func (v *skippingVisitor) VisitChunkStart(*Chunk) bool { return false }
func (v *skippingVisitor) VisitPacket(*Packet) bool {
	v.sawPacket = true
	return true
}

func TestVisitChunkStartFalseSkipsEverything(t *testing.T) {
	b := NewBuilder()
	must(t, b.BeginChunk())
	must(t, b.BeginPacket(0x1000, "nop"))
	_, err := b.EndPacket()
	must(t, err)
	chunk, err := b.EndChunk()
	must(t, err)

	v := &skippingVisitor{}
	Walk(chunk, v)
	if v.sawPacket {
		t.Fatal("VisitPacket should not run when VisitChunkStart returns false")
	}
}
