package static

import (
	"testing"

	x86lift "arancini/input/x86"
	"arancini/ir"
)

func lift(t *testing.T, code []byte) *ir.Chunk {
	t.Helper()
	resolver := ir.NewFunctionResolver(x86lift.FunctionProvider{})
	chunk, err := x86lift.NewLifter(resolver).Lift(code, 0)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	return chunk
}

func TestEngineGenerateProducesWellFormedELF(t *testing.T) {
	e := NewEngine()
	if err := e.AddChunk(lift(t, []byte{0x90, 0xC3})); err != nil { // nop; ret
		t.Fatalf("AddChunk: %v", err)
	}

	out, err := e.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(out) < execHeaderSizeConst() {
		t.Fatalf("output too short for an ELF header: %d bytes", len(out))
	}
	if out[0] != 0x7f || out[1] != 'E' || out[2] != 'L' || out[3] != 'F' {
		t.Fatalf("missing ELF magic, got % x", out[:4])
	}
	if out[4] != 2 {
		t.Fatalf("EI_CLASS = %d, want ELFCLASS64 (2)", out[4])
	}

	etype := uint16(out[16]) | uint16(out[17])<<8
	if etype != 2 {
		t.Fatalf("e_type = %d, want ET_EXEC (2)", etype)
	}

	phnum := uint16(out[56]) | uint16(out[57])<<8
	if phnum != 1 {
		t.Fatalf("e_phnum = %d, want 1", phnum)
	}
}

func TestEngineGenerateEmptyEngineStillProducesEntryStub(t *testing.T) {
	e := NewEngine()

	out, err := e.Generate()
	if err != nil {
		t.Fatalf("Generate with no chunks: %v", err)
	}
	if len(out) <= execHeaderSizeConst() {
		t.Fatalf("expected the entry stub to occupy bytes beyond the ELF header, got %d total", len(out))
	}
}

func TestEngineGenerateObjectProducesRelocatableELF(t *testing.T) {
	e := NewEngine()
	if err := e.AddChunk(lift(t, []byte{0x90, 0xC3})); err != nil { // nop; ret
		t.Fatalf("AddChunk: %v", err)
	}

	out, err := e.GenerateObject()
	if err != nil {
		t.Fatalf("GenerateObject: %v", err)
	}
	if out[0] != 0x7f || out[1] != 'E' || out[2] != 'L' || out[3] != 'F' {
		t.Fatalf("missing ELF magic, got % x", out[:4])
	}

	etype := uint16(out[16]) | uint16(out[17])<<8
	if etype != 1 {
		t.Fatalf("e_type = %d, want ET_REL (1)", etype)
	}

	shnum := uint16(out[60]) | uint16(out[61])<<8
	if shnum < 4 { // null, .text, .shstrtab, .strtab, .symtab
		t.Fatalf("e_shnum = %d, want at least 4 sections", shnum)
	}
}

func TestAddChunkSkipsEmptyBlocks(t *testing.T) {
	e := NewEngine()
	chunk := &ir.Chunk{Blocks: []*ir.Block{{Packets: nil}}}
	if err := e.AddChunk(chunk); err != nil {
		t.Fatalf("AddChunk with an empty block: %v", err)
	}
	if e.code.Len() != 0 {
		t.Fatalf("expected no code to be emitted for an empty block, got %d bytes", e.code.Len())
	}
}
