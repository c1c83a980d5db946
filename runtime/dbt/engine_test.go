package dbt

import (
	"errors"
	"testing"

	"arancini/ir"
	x86lift "arancini/input/x86"
)

var errNoMoreCode = errors.New("dbt: no more guest code")

func testEngine(t *testing.T, code []byte) *Engine {
	t.Helper()
	resolver := ir.NewFunctionResolver(x86lift.FunctionProvider{})
	e := NewEngine(resolver, func(pc uint64) ([]byte, error) {
		if pc >= uint64(len(code)) {
			return nil, errNoMoreCode
		}
		return code[pc:], nil
	})
	return e
}

func TestEngineTranslateNopCachesOnResolve(t *testing.T) {
	e := testEngine(t, []byte{0x90})

	t1, err := e.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if t1.PC != 0 {
		t.Fatalf("PC = %#x, want 0", t1.PC)
	}

	t2, err := e.Resolve(0)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if t1 != t2 {
		t.Fatal("expected the cached translation to be reused on a second Resolve")
	}
}

func TestEngineTranslateUnconditionalJumpReservesChainSite(t *testing.T) {
	e := testEngine(t, []byte{0xEB, 0x02, 0x90, 0x90, 0xC3})

	tr, err := e.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.ChainOffset < 0 {
		t.Fatal("expected a block ending in JMP to reserve a chain site")
	}
	if tr.ChainBound <= 0 {
		t.Fatalf("ChainBound = %d, want > 0", tr.ChainBound)
	}
}
