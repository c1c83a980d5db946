package dbt

import (
	"bytes"
	"testing"

	"arancini/output/dynamic"
	x86 "arancini/output/dynamic/x86"
)

// reservedTranslation builds a real executable region with a
// chainSiteReserve-sized nop-sled "chain site" at the given offset, the
// shape runtime/dbt.Engine leaves behind for ChainTable to patch.
func reservedTranslation(t *testing.T, pc uint64, chainOffset, chainBound int) (*Translation, *dynamic.CodeWriter) {
	t.Helper()
	w, err := dynamic.NewCodeWriter()
	if err != nil {
		t.Fatalf("NewCodeWriter: %v", err)
	}
	for i := 0; i < chainOffset+chainBound; i++ {
		if err := w.Emit8(0x90); err != nil {
			t.Fatalf("Emit8: %v", err)
		}
	}
	code, err := w.Finalise()
	if err != nil {
		t.Fatalf("Finalise: %v", err)
	}
	return NewTranslation(pc, w, w.Ptr(), chainOffset, chainBound, code), w
}

func TestChainTablePatchWritesJumpAtSite(t *testing.T) {
	from, fromWriter := reservedTranslation(t, 0x1000, 4, 16)
	defer fromWriter.Release()
	target, targetWriter := reservedTranslation(t, 0x2000, -1, 0)
	defer targetWriter.Release()

	ct := NewChainTable()
	if err := ct.Patch(from, target); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	want := x86.EncodeChainJump(target.Entry)
	got := from.Code[from.ChainOffset : from.ChainOffset+len(want)]
	if !bytes.Equal(got, want) {
		t.Fatalf("patched bytes = %x, want %x", got, want)
	}
}

func TestChainTablePatchNoOpWithoutReservedSite(t *testing.T) {
	from := &Translation{PC: 0x1000, ChainOffset: -1}
	target, targetWriter := reservedTranslation(t, 0x2000, -1, 0)
	defer targetWriter.Release()

	ct := NewChainTable()
	if err := ct.Patch(from, target); err != nil {
		t.Fatalf("Patch on unreserved translation should be a no-op, got error: %v", err)
	}
}

func TestChainTablePatchRejectsOversizedJump(t *testing.T) {
	from, fromWriter := reservedTranslation(t, 0x1000, 4, 8) // too small for the 13-byte jump
	defer fromWriter.Release()
	target, targetWriter := reservedTranslation(t, 0x2000, -1, 0)
	defer targetWriter.Release()

	ct := NewChainTable()
	err := ct.Patch(from, target)
	if _, ok := err.(*dynamic.ChainOverflow); !ok {
		t.Fatalf("got %T (%v), want *dynamic.ChainOverflow", err, err)
	}
}
