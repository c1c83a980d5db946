package dynamic

import (
	"testing"

	"arancini/ir"
)

type fakeBackend struct {
	lowered []ir.Kind
}

func (f *fakeBackend) Name() string                 { return "fake" }
func (f *fakeBackend) SupportsNode(ir.Kind) bool     { return true }
func (f *fakeBackend) LowerPrologue(*CodeWriter, int) error { return nil }
func (f *fakeBackend) LowerEpilogue(*CodeWriter, ExitKind) error { return nil }
func (f *fakeBackend) ChainSiteOffset() int                      { return -1 }
func (f *fakeBackend) Lower(pkt *ir.Packet, n *ir.Node, w *CodeWriter) error {
	f.lowered = append(f.lowered, n.Kind)
	return nil
}

func TestContextHappyPath(t *testing.T) {
	w, err := NewCodeWriter()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	be := &fakeBackend{}
	c := NewContext(be, w)

	must(t, c.BeginBlock(8))
	must(t, c.BeginInstruction(&ir.Packet{Address: 0x1000}))
	must(t, c.Lower(&ir.Node{Kind: ir.KindConstant}))
	must(t, c.EndInstruction())
	must(t, c.EndBlock(ExitToDispatcher))

	if len(be.lowered) != 1 || be.lowered[0] != ir.KindConstant {
		t.Fatalf("got %v", be.lowered)
	}
}

func TestLowerOutsideInInstrIsBackendStateError(t *testing.T) {
	w, err := NewCodeWriter()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	c := NewContext(&fakeBackend{}, w)

	err = c.Lower(&ir.Node{Kind: ir.KindConstant})
	if _, ok := err.(*BackendStateError); !ok {
		t.Fatalf("got %T (%v), want *BackendStateError", err, err)
	}
}

func TestEndBlockBeforeEndInstructionIsBackendStateError(t *testing.T) {
	w, err := NewCodeWriter()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	c := NewContext(&fakeBackend{}, w)

	must(t, c.BeginBlock(8))
	must(t, c.BeginInstruction(&ir.Packet{Address: 0x1000}))
	err = c.EndBlock(ExitToDispatcher)
	if _, ok := err.(*BackendStateError); !ok {
		t.Fatalf("got %T (%v), want *BackendStateError", err, err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
