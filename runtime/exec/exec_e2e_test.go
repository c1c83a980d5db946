//go:build amd64

package exec

import (
	"testing"

	abi "arancini/abi/x86"
)

// newTestContext builds a Context over a small guest memory region and
// writes code at offset 0, matching the guest-address-as-memory-offset
// convention the other end-to-end scenarios use.
func newTestContext(t *testing.T, code []byte) *Context {
	t.Helper()
	c, err := NewContext(64 * 1024)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	copy(c.Memory, code)
	return c
}

func runOne(t *testing.T, c *Context, th *Thread) int64 {
	t.Helper()
	translation, err := c.Engine.Resolve(th.readPC())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	translation.Acquire()
	defer translation.Release()
	return callNative(translation.Entry, cpuStatePtr(th.State), memoryPtr(c.Memory))
}

func TestE2ENop(t *testing.T) {
	c := newTestContext(t, []byte{0x90})
	th := NewThread(0)
	if reason := runOne(t, c, th); reason != abi.ExitNormal {
		t.Fatalf("reason = %d, want ExitNormal", reason)
	}
	if pc := th.readPC(); pc != 1 {
		t.Fatalf("pc = %#x, want 1", pc)
	}
}

func TestE2EMovRaxImm(t *testing.T) {
	c := newTestContext(t, []byte{0x48, 0xC7, 0xC0, 0x2A, 0x00, 0x00, 0x00})
	th := NewThread(0)
	if reason := runOne(t, c, th); reason != abi.ExitNormal {
		t.Fatalf("reason = %d, want ExitNormal", reason)
	}
	if got := getU64(th.State, abi.OffRAX); got != 42 {
		t.Fatalf("rax = %d, want 42", got)
	}
}

func TestE2EPushRax(t *testing.T) {
	c := newTestContext(t, []byte{0x50})
	th := NewThread(0)
	putU64(th.State, abi.OffRSP, 0x1000)
	putU64(th.State, abi.OffRAX, 7)

	if reason := runOne(t, c, th); reason != abi.ExitNormal {
		t.Fatalf("reason = %d, want ExitNormal", reason)
	}
	if got := getU64(th.State, abi.OffRSP); got != 0x0FF8 {
		t.Fatalf("rsp = %#x, want 0xFF8", got)
	}
	var mem [8]byte
	copy(mem[:], c.Memory[0x0FF8:0x1000])
	got := uint64(0)
	for i := 7; i >= 0; i-- {
		got = got<<8 | uint64(mem[i])
	}
	if got != 7 {
		t.Fatalf("memory[0xFF8:] = %d, want 7", got)
	}
}

func TestE2ERet(t *testing.T) {
	c := newTestContext(t, []byte{0xC3})
	th := NewThread(0)
	putU64(th.State, abi.OffRSP, 0x0FF8)
	putU64(c.Memory, 0x0FF8, 0x4142)

	if reason := runOne(t, c, th); reason != abi.ExitNormal {
		t.Fatalf("reason = %d, want ExitNormal", reason)
	}
	if pc := th.readPC(); pc != 0x4142 {
		t.Fatalf("pc = %#x, want 0x4142", pc)
	}
	if got := getU64(th.State, abi.OffRSP); got != 0x1000 {
		t.Fatalf("rsp = %#x, want 0x1000", got)
	}
}

func TestE2EInt3IsInterruptExit(t *testing.T) {
	c := newTestContext(t, []byte{0xCC})
	th := NewThread(0)

	reason := runOne(t, c, th)
	if reason != abi.ExitInterrupt {
		t.Fatalf("reason = %d, want ExitInterrupt", reason)
	}
	if got := getU64(th.State, abi.OffCallArg); got != 3 {
		t.Fatalf("call arg = %d, want vector 3", got)
	}
}

// TestE2EChainedBlocksPatchToDirectJump covers scenario 6: a two-block
// chunk where the first block's unconditional jump, once both blocks
// are translated, is patched to jump straight into the second block's
// translation instead of falling through to the dispatcher.
func TestE2EChainedBlocksPatchToDirectJump(t *testing.T) {
	c := newTestContext(t, []byte{0xEB, 0x02, 0x90, 0x90, 0xC3})

	first, err := c.Engine.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve(0): %v", err)
	}
	if first.ChainOffset < 0 {
		t.Fatal("expected block ending in an unconditional branch to reserve a chain site")
	}

	th := NewThread(0)
	if reason := runOne(t, c, th); reason != abi.ExitNormal {
		t.Fatalf("first block reason = %d, want ExitNormal (unpatched falls to dispatcher)", reason)
	}
	if pc := th.readPC(); pc != 4 {
		t.Fatalf("pc after first block = %#x, want 4", pc)
	}

	second, err := c.Engine.Resolve(4)
	if err != nil {
		t.Fatalf("Resolve(4): %v", err)
	}
	if err := c.Engine.Chains.Patch(first, second); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	th2 := NewThread(0)
	putU64(th2.State, abi.OffRSP, 0x0FF8)
	putU64(c.Memory, 0x0FF8, 0x9999)
	if reason := runOne(t, c, th2); reason != abi.ExitNormal {
		t.Fatalf("chained run reason = %d, want ExitNormal", reason)
	}
	if pc := th2.readPC(); pc != 0x9999 {
		t.Fatalf("pc after chained run = %#x, want 0x9999 (ran straight through into the RET block)", pc)
	}
}
