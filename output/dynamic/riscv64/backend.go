// Package riscv64 is the other intentionally partial host backend
// (see output/dynamic/arm64's doc comment for why): the original
// source's RISC-V 64 translation-context methods were themselves
// empty bodies, a placeholder for a target nobody had finished
// wiring up yet. arancini-go keeps that honest rather than papering
// over it with an encoder the original never had.
package riscv64

import (
	"arancini/ir"
	"arancini/output/dynamic"
)

type Backend struct{}

func NewBackend() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "riscv64" }

func (b *Backend) SupportsNode(k ir.Kind) bool {
	return k == ir.KindStart || k == ir.KindEnd
}

func (b *Backend) LowerPrologue(w *dynamic.CodeWriter, valueSlots int) error { return nil }

func (b *Backend) LowerEpilogue(w *dynamic.CodeWriter, exit dynamic.ExitKind) error { return nil }

func (b *Backend) ChainSiteOffset() int { return -1 }

func (b *Backend) Lower(pkt *ir.Packet, n *ir.Node, w *dynamic.CodeWriter) error {
	if !b.SupportsNode(n.Kind) {
		return &dynamic.ErrNodeUnsupported{Backend: b.Name(), Kind: n.Kind.String()}
	}
	return nil
}
