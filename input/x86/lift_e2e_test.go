package x86

import (
	"testing"

	"arancini/ir"
)

func newTestLifter() *lifter {
	return NewLifter(ir.NewFunctionResolver(FunctionProvider{}))
}

func TestLiftNop(t *testing.T) {
	l := newTestLifter()
	chunk, err := l.Lift([]byte{0x90}, 0x1000)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	pkt := onlyPacket(t, chunk)
	if pkt.Type != ir.PacketNormal {
		t.Fatalf("got %v, want normal", pkt.Type)
	}
}

func TestLiftMovRaxImm(t *testing.T) {
	l := newTestLifter()
	// 48 C7 C0 2A 00 00 00 == mov rax, 42
	chunk, err := l.Lift([]byte{0x48, 0xC7, 0xC0, 0x2A, 0x00, 0x00, 0x00}, 0x1000)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	pkt := onlyPacket(t, chunk)
	if pkt.Type != ir.PacketNormal {
		t.Fatalf("got %v, want normal", pkt.Type)
	}
	found := false
	for _, n := range pkt.Nodes {
		if n.Kind == ir.KindWriteReg {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a write_reg node")
	}
}

func TestLiftPush(t *testing.T) {
	l := newTestLifter()
	chunk, err := l.Lift([]byte{0x50}, 0x1000) // push rax
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	pkt := onlyPacket(t, chunk)
	if pkt.Type != ir.PacketNormal {
		t.Fatalf("got %v, want normal", pkt.Type)
	}
	sawWriteMem := false
	for _, n := range pkt.Nodes {
		if n.Kind == ir.KindWriteMem {
			sawWriteMem = true
		}
	}
	if !sawWriteMem {
		t.Fatal("expected a write_mem node for the pushed value")
	}
}

func TestLiftRet(t *testing.T) {
	l := newTestLifter()
	chunk, err := l.Lift([]byte{0xC3}, 0x1000)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	pkt := onlyPacket(t, chunk)
	if pkt.Type != ir.PacketReturn {
		t.Fatalf("got %v, want return", pkt.Type)
	}
}

func TestLiftInt3(t *testing.T) {
	l := newTestLifter()
	chunk, err := l.Lift([]byte{0xCC}, 0x1000)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	pkt := onlyPacket(t, chunk)
	if pkt.Type != ir.PacketInterrupt {
		t.Fatalf("got %v, want interrupt", pkt.Type)
	}
}

// TestLiftBranchChain covers a five-byte end-to-end scenario: an
// unconditional jump over two NOPs onto a RET. The lifter decodes
// linearly, so the chunk splits into two blocks after the jump, and
// the second block holds both NOPs followed by the RET.
func TestLiftBranchChain(t *testing.T) {
	l := newTestLifter()
	// EB 02 : jmp +2            (at 0x1000, len 2, target 0x1004)
	// 90    : nop                (at 0x1002)
	// 90    : nop                (at 0x1003)
	// C3    : ret                (at 0x1004)
	code := []byte{0xEB, 0x02, 0x90, 0x90, 0xC3}
	chunk, err := l.Lift(code, 0x1000)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if len(chunk.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(chunk.Blocks))
	}
	first := chunk.Blocks[0]
	if len(first.Packets) != 1 || first.Packets[0].Type != ir.PacketBranch {
		t.Fatalf("first block: got %+v", first.Packets)
	}
	second := chunk.Blocks[1]
	if len(second.Packets) != 3 {
		t.Fatalf("second block: got %d packets, want 3", len(second.Packets))
	}
	if second.Packets[0].Address != 0x1002 || second.Packets[1].Address != 0x1003 {
		t.Fatalf("unexpected packet addresses: %#x, %#x", second.Packets[0].Address, second.Packets[1].Address)
	}
	if second.Packets[2].Type != ir.PacketReturn {
		t.Fatalf("last packet: got %v, want return", second.Packets[2].Type)
	}
}

func onlyPacket(t *testing.T, c *ir.Chunk) *ir.Packet {
	t.Helper()
	if len(c.Blocks) == 0 || len(c.Blocks[0].Packets) != 1 {
		t.Fatalf("expected exactly one packet, got chunk %+v", c)
	}
	return c.Blocks[0].Packets[0]
}
