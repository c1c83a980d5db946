package dbt

import (
	"fmt"

	"arancini/ir"
	"arancini/output/dynamic"
	x86backend "arancini/output/dynamic/x86"
	x86lift "arancini/input/x86"
)

// Lifter is the subset of input/x86's lifter the engine needs; named
// here so Engine doesn't hard-depend on input/x86's concrete type,
// keeping the dynamic core decoupled from its ISA-specific
// collaborators.
type Lifter interface {
	Lift(code []byte, base uint64) (*ir.Chunk, error)
}

// Engine is the translate-on-miss driver: Cache lookups that miss
// call Translate, which lifts guest code at pc, lowers the first block
// of the resulting chunk through a fresh Backend, and installs the
// result in Cache.
type Engine struct {
	Cache      *Cache
	Chains     *ChainTable
	Lifter     Lifter
	NewBackend func() dynamic.Backend
	// CodeSource returns at least one instruction's worth of guest
	// code bytes starting at pc; runtime/exec.Context supplies this
	// from its guest memory mapping.
	CodeSource func(pc uint64) ([]byte, error)
}

// NewEngine wires a default x86 lifter and backend factory; callers
// needing the ARM64/RISC-V64 stubs construct an Engine by hand with a
// different NewBackend.
func NewEngine(resolver *ir.FunctionResolver, codeSource func(uint64) ([]byte, error)) *Engine {
	return &Engine{
		Cache:      NewCache(),
		Chains:     NewChainTable(),
		Lifter:     x86lift.NewLifter(resolver),
		NewBackend: func() dynamic.Backend { return x86backend.NewBackend() },
		CodeSource: codeSource,
	}
}

// Resolve returns the translation for pc, translating on a cache miss.
func (e *Engine) Resolve(pc uint64) (*Translation, error) {
	if t, ok := e.Cache.Lookup(pc); ok {
		return t, nil
	}
	t, err := e.Translate(pc)
	if err != nil {
		return nil, err
	}
	return e.Cache.Insert(t), nil
}

// Translate lifts and lowers exactly one block's worth of guest code
// starting at pc. A chunk may decode further blocks beyond the first
// (the lifter keeps decoding until it runs out of input), but only the
// block actually entered at pc becomes this Translation; a later
// Resolve for a block's successor PC translates it independently and
// the two link up lazily through ChainTable once both exist.
func (e *Engine) Translate(pc uint64) (*Translation, error) {
	code, err := e.CodeSource(pc)
	if err != nil {
		return nil, &TranslationFailed{PC: pc, Err: err}
	}
	chunk, err := e.Lifter.Lift(code, pc)
	if err != nil {
		return nil, &TranslationFailed{PC: pc, Err: err}
	}
	if len(chunk.Blocks) == 0 || len(chunk.Blocks[0].Packets) == 0 {
		return nil, &TranslationFailed{PC: pc, Err: fmt.Errorf("lifter produced no packets")}
	}
	block := chunk.Blocks[0]

	w, err := dynamic.NewCodeWriter()
	if err != nil {
		return nil, &ResourceExhaustion{Resource: "code writer", Err: err}
	}
	backend := e.NewBackend()
	ctx := dynamic.NewContext(backend, w)

	valueSlots := 0
	for _, pkt := range block.Packets {
		if n := len(pkt.Nodes); n > valueSlots {
			valueSlots = n
		}
	}
	if err := ctx.BeginBlock(valueSlots); err != nil {
		w.Release()
		return nil, &TranslationFailed{PC: pc, Err: err}
	}
	for _, pkt := range block.Packets {
		if err := ctx.BeginInstruction(pkt); err != nil {
			w.Release()
			return nil, &TranslationFailed{PC: pc, Err: err}
		}
		for i := range pkt.Nodes {
			if err := ctx.Lower(pkt.Node(ir.NodeID(i))); err != nil {
				w.Release()
				return nil, &TranslationFailed{PC: pc, Err: err}
			}
		}
		if err := ctx.EndInstruction(); err != nil {
			w.Release()
			return nil, &TranslationFailed{PC: pc, Err: err}
		}
	}
	exit := dynamic.ExitToDispatcher
	if block.Packets[len(block.Packets)-1].Type == ir.PacketBranch {
		exit = dynamic.ExitChained
	}
	if err := ctx.EndBlock(exit); err != nil {
		w.Release()
		return nil, &TranslationFailed{PC: pc, Err: err}
	}

	code2, err := w.Finalise()
	if err != nil {
		w.Release()
		return nil, &ResourceExhaustion{Resource: "code writer finalise", Err: err}
	}
	chainOffset := backend.ChainSiteOffset()
	chainBound := 0
	if chainOffset >= 0 {
		chainBound = len(code2) - chainOffset
	}
	return NewTranslation(pc, w, w.Ptr(), chainOffset, chainBound, code2), nil
}
