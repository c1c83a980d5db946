package ir

// Visitor is the traversal contract for chunks. Every per-kind method
// returns true to continue visiting the node's siblings or false to
// stop early within the current packet; VisitChunkStart, VisitBlock
// and VisitPacket additionally gate whether their subtree is visited
// at all. BaseVisitor gives every per-kind method a default that
// forwards to the next most generic one, so a concrete visitor need
// only override the handful of kinds it cares about.
type Visitor interface {
	VisitChunkStart(c *Chunk) bool
	VisitChunkEnd(c *Chunk)
	VisitBlock(b *Block) bool
	VisitPacket(p *Packet) bool

	VisitNode(n *Node) bool
	VisitValue(n *Node) bool
	VisitAction(n *Node) bool

	VisitStart(n *Node) bool
	VisitEnd(n *Node) bool
	VisitConstant(n *Node) bool
	VisitReadReg(n *Node) bool
	VisitReadMem(n *Node) bool
	VisitBinaryArith(n *Node) bool
	VisitShift(n *Node) bool
	VisitBitExtract(n *Node) bool
	VisitNot(n *Node) bool
	VisitZeroExtend(n *Node) bool
	VisitSignExtend(n *Node) bool
	VisitBitcast(n *Node) bool
	VisitSelect(n *Node) bool
	VisitWriteReg(n *Node) bool
	VisitWriteMem(n *Node) bool
	VisitWritePC(n *Node) bool
	VisitInternalCall(n *Node) bool
	VisitBr(n *Node) bool
	VisitRet(n *Node) bool
}

// BaseVisitor implements Visitor with every method forwarding to the
// next more generic hook, bottoming out at VisitNode, which defaults
// to true. Embed it and override only what you need.
type BaseVisitor struct{}

func (BaseVisitor) VisitChunkStart(*Chunk) bool { return true }
func (BaseVisitor) VisitChunkEnd(*Chunk)        {}
func (BaseVisitor) VisitBlock(*Block) bool      { return true }
func (BaseVisitor) VisitPacket(*Packet) bool    { return true }

func (BaseVisitor) VisitNode(*Node) bool { return true }

func (b BaseVisitor) VisitValue(n *Node) bool  { return b.VisitNode(n) }
func (b BaseVisitor) VisitAction(n *Node) bool { return b.VisitNode(n) }

func (b BaseVisitor) VisitStart(n *Node) bool { return b.VisitNode(n) }
func (b BaseVisitor) VisitEnd(n *Node) bool   { return b.VisitNode(n) }

func (b BaseVisitor) VisitConstant(n *Node) bool     { return b.VisitValue(n) }
func (b BaseVisitor) VisitReadReg(n *Node) bool      { return b.VisitValue(n) }
func (b BaseVisitor) VisitReadMem(n *Node) bool      { return b.VisitValue(n) }
func (b BaseVisitor) VisitBinaryArith(n *Node) bool  { return b.VisitValue(n) }
func (b BaseVisitor) VisitShift(n *Node) bool        { return b.VisitValue(n) }
func (b BaseVisitor) VisitBitExtract(n *Node) bool   { return b.VisitValue(n) }
func (b BaseVisitor) VisitNot(n *Node) bool          { return b.VisitValue(n) }
func (b BaseVisitor) VisitZeroExtend(n *Node) bool   { return b.VisitValue(n) }
func (b BaseVisitor) VisitSignExtend(n *Node) bool   { return b.VisitValue(n) }
func (b BaseVisitor) VisitBitcast(n *Node) bool      { return b.VisitValue(n) }
func (b BaseVisitor) VisitSelect(n *Node) bool       { return b.VisitValue(n) }

func (b BaseVisitor) VisitWriteReg(n *Node) bool     { return b.VisitAction(n) }
func (b BaseVisitor) VisitWriteMem(n *Node) bool     { return b.VisitAction(n) }
func (b BaseVisitor) VisitWritePC(n *Node) bool      { return b.VisitAction(n) }
func (b BaseVisitor) VisitInternalCall(n *Node) bool { return b.VisitAction(n) }
func (b BaseVisitor) VisitBr(n *Node) bool           { return b.VisitAction(n) }
func (b BaseVisitor) VisitRet(n *Node) bool          { return b.VisitAction(n) }

// Walk drives v over every block, packet and node of c in order.
func Walk(c *Chunk, v Visitor) {
	if !v.VisitChunkStart(c) {
		return
	}
	for _, blk := range c.Blocks {
		if !v.VisitBlock(blk) {
			continue
		}
		for _, pkt := range blk.Packets {
			if !v.VisitPacket(pkt) {
				continue
			}
			for i := range pkt.Nodes {
				if !dispatch(&pkt.Nodes[i], v) {
					break
				}
			}
		}
	}
	v.VisitChunkEnd(c)
}

func dispatch(n *Node, v Visitor) bool {
	switch n.Kind {
	case KindStart:
		return v.VisitStart(n)
	case KindEnd:
		return v.VisitEnd(n)
	case KindConstant:
		return v.VisitConstant(n)
	case KindReadReg:
		return v.VisitReadReg(n)
	case KindReadMem:
		return v.VisitReadMem(n)
	case KindBinaryArith:
		return v.VisitBinaryArith(n)
	case KindShift:
		return v.VisitShift(n)
	case KindBitExtract:
		return v.VisitBitExtract(n)
	case KindNot:
		return v.VisitNot(n)
	case KindZeroExtend:
		return v.VisitZeroExtend(n)
	case KindSignExtend:
		return v.VisitSignExtend(n)
	case KindBitcast:
		return v.VisitBitcast(n)
	case KindSelect:
		return v.VisitSelect(n)
	case KindWriteReg:
		return v.VisitWriteReg(n)
	case KindWriteMem:
		return v.VisitWriteMem(n)
	case KindWritePC:
		return v.VisitWritePC(n)
	case KindInternalCall:
		return v.VisitInternalCall(n)
	case KindBr:
		return v.VisitBr(n)
	case KindRet:
		return v.VisitRet(n)
	default:
		return v.VisitNode(n)
	}
}
