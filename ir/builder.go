package ir

import "fmt"

// Builder assembles chunks of blocks of packets one packet at a time.
// It is not safe for concurrent use; callers lift one guest thread's
// instruction stream through one Builder at a time.
type Builder struct {
	chunk   *Chunk
	block   *Block
	packet  *Packet
	inPkt   bool
	inChunk bool
}

func NewBuilder() *Builder { return &Builder{} }

// BeginChunk starts a new chunk. Calling it while a chunk is already
// open is a usage error.
func (b *Builder) BeginChunk() error {
	if b.inChunk {
		return &IrUsageError{Op: "BeginChunk", Reason: "a chunk is already open"}
	}
	b.chunk = &Chunk{}
	b.block = &Block{}
	b.chunk.Blocks = append(b.chunk.Blocks, b.block)
	b.inChunk = true
	return nil
}

// EndChunk closes the current chunk and returns it. Any block left
// empty by the caller (e.g. the final block after a terminal packet
// started a fresh one that was never used) is trimmed.
func (b *Builder) EndChunk() (*Chunk, error) {
	if !b.inChunk {
		return nil, &IrUsageError{Op: "EndChunk", Reason: "no chunk is open"}
	}
	if b.inPkt {
		return nil, &IrUsageError{Op: "EndChunk", Reason: "a packet is still open"}
	}
	c := b.chunk
	if len(c.Blocks) > 0 && len(c.Blocks[len(c.Blocks)-1].Packets) == 0 {
		c.Blocks = c.Blocks[:len(c.Blocks)-1]
	}
	b.chunk, b.block, b.packet, b.inChunk = nil, nil, nil, false
	return c, nil
}

// BeginPacket starts lifting one guest instruction at addr.
func (b *Builder) BeginPacket(addr uint64, disasm string) error {
	if !b.inChunk {
		return &IrUsageError{Op: "BeginPacket", Reason: "no chunk is open"}
	}
	if b.inPkt {
		return &IrUsageError{Op: "BeginPacket", Reason: "a packet is already open"}
	}
	b.packet = &Packet{Address: addr, Disasm: disasm}
	b.packet.Nodes = append(b.packet.Nodes, Node{ID: 0, Kind: KindStart})
	b.inPkt = true
	return nil
}

// EndPacket closes the current packet, appends it to the current
// block, derives its PacketType, and starts a fresh block if the
// packet ended the block.
func (b *Builder) EndPacket() (PacketType, error) {
	if !b.inPkt {
		return 0, &IrUsageError{Op: "EndPacket", Reason: "no packet is open"}
	}
	b.emit(Node{Kind: KindEnd})
	b.packet.Type = b.packet.resolveType()
	pt := b.packet.Type
	b.block.Packets = append(b.block.Packets, b.packet)
	if pt.EndsBlock() {
		b.block = &Block{}
		b.chunk.Blocks = append(b.chunk.Blocks, b.block)
	}
	b.packet, b.inPkt = nil, false
	return pt, nil
}

func (b *Builder) emit(n Node) NodeID {
	n.ID = NodeID(len(b.packet.Nodes))
	b.packet.Nodes = append(b.packet.Nodes, n)
	return n.ID
}

func (b *Builder) checkInputs(op string, ids ...NodeID) error {
	if !b.inPkt {
		return &IrUsageError{Op: op, Reason: "no packet is open"}
	}
	next := NodeID(len(b.packet.Nodes))
	for _, id := range ids {
		if id < 0 || id >= next {
			return &IrUsageError{Op: op, Reason: "operand references a node outside the current packet or not yet defined"}
		}
	}
	return nil
}

// nodeType returns the output type of an already-defined node in the
// current packet. Callers must only pass ids checkInputs has already
// bounds-checked.
func (b *Builder) nodeType(id NodeID) ValueType {
	return b.packet.Nodes[id].Type
}

// checkSameType enforces type agreement between operands that must
// share one type (e.g. the two sides of a binary_arith), per the
// invariant that every edge's source output type equals its
// destination input type.
func (b *Builder) checkSameType(op string, ids ...NodeID) error {
	if len(ids) == 0 {
		return nil
	}
	want := b.nodeType(ids[0])
	for _, id := range ids[1:] {
		if got := b.nodeType(id); got != want {
			return &IrUsageError{Op: op, Reason: fmt.Sprintf("operand type mismatch: %s vs %s", want, got)}
		}
	}
	return nil
}

// checkResultType enforces that a node's declared output type agrees
// with one of its own operands, for constructors where the two must
// match (every binary_arith or shift except a comparison, which by
// convention produces a boolean result independent of its operands'
// width).
func (b *Builder) checkResultType(op string, t ValueType, id NodeID) error {
	if got := b.nodeType(id); got != t {
		return &IrUsageError{Op: op, Reason: fmt.Sprintf("declared type %s disagrees with operand type %s", t, got)}
	}
	return nil
}

// Constant materializes an immediate value of type t.
func (b *Builder) Constant(t ValueType, value uint64) (NodeID, error) {
	if err := b.checkInputs("Constant"); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindConstant, Type: t, ConstValue: value}), nil
}

// ReadReg reads width-bits of guest register state at offset.
func (b *Builder) ReadReg(t ValueType, offset int) (NodeID, error) {
	if err := b.checkInputs("ReadReg"); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindReadReg, Type: t, RegOffset: offset}), nil
}

// ReadMem reads t from the guest address produced by addr.
func (b *Builder) ReadMem(t ValueType, addr NodeID) (NodeID, error) {
	if err := b.checkInputs("ReadMem", addr); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindReadMem, Type: t, Inputs: []NodeID{addr}}), nil
}

// BinaryArith applies op to lhs and rhs, both of type t. A comparison
// (ArithCmp) is the one exception to t matching the operands: per the
// "integer compares return width-1" rule, its result is a boolean
// independent of its operands' width, so only lhs and rhs need to
// agree with each other.
func (b *Builder) BinaryArith(t ValueType, op ArithOp, lhs, rhs NodeID) (NodeID, error) {
	if err := b.checkInputs("BinaryArith", lhs, rhs); err != nil {
		return 0, err
	}
	if err := b.checkSameType("BinaryArith", lhs, rhs); err != nil {
		return 0, err
	}
	if op != ArithCmp {
		if err := b.checkResultType("BinaryArith", t, lhs); err != nil {
			return 0, err
		}
	}
	return b.emit(Node{Kind: KindBinaryArith, Type: t, ArithOp: op, Inputs: []NodeID{lhs, rhs}}), nil
}

// Shift applies op to value by amount, both of type t.
func (b *Builder) Shift(t ValueType, op ShiftOp, value, amount NodeID) (NodeID, error) {
	if err := b.checkInputs("Shift", value, amount); err != nil {
		return 0, err
	}
	if err := b.checkSameType("Shift", value, amount); err != nil {
		return 0, err
	}
	if err := b.checkResultType("Shift", t, value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindShift, Type: t, ShiftOp: op, Inputs: []NodeID{value, amount}}), nil
}

// BitExtract extracts bits [lo, hi) from value, requiring
// 0 <= lo < hi <= width(value).
func (b *Builder) BitExtract(t ValueType, value NodeID, lo, hi int) (NodeID, error) {
	if err := b.checkInputs("BitExtract", value); err != nil {
		return 0, err
	}
	if width := b.nodeType(value).Bits(); lo < 0 || hi <= lo || hi > width {
		reason := fmt.Sprintf("bit range [%d,%d) out of bounds for a %d-bit operand", lo, hi, width)
		return 0, &IrUsageError{Op: "BitExtract", Reason: reason}
	}
	return b.emit(Node{Kind: KindBitExtract, Type: t, Inputs: []NodeID{value}, ExtractLo: lo, ExtractHi: hi}), nil
}

func (b *Builder) Not(t ValueType, value NodeID) (NodeID, error) {
	if err := b.checkInputs("Not", value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindNot, Type: t, Inputs: []NodeID{value}}), nil
}

func (b *Builder) ZeroExtend(t ValueType, value NodeID) (NodeID, error) {
	if err := b.checkInputs("ZeroExtend", value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindZeroExtend, Type: t, Inputs: []NodeID{value}}), nil
}

func (b *Builder) SignExtend(t ValueType, value NodeID) (NodeID, error) {
	if err := b.checkInputs("SignExtend", value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindSignExtend, Type: t, Inputs: []NodeID{value}}), nil
}

func (b *Builder) Bitcast(t ValueType, value NodeID) (NodeID, error) {
	if err := b.checkInputs("Bitcast", value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindBitcast, Type: t, Inputs: []NodeID{value}}), nil
}

// Select chooses whenTrue or whenFalse based on cond (a U(1) value).
func (b *Builder) Select(t ValueType, cond, whenTrue, whenFalse NodeID) (NodeID, error) {
	if err := b.checkInputs("Select", cond, whenTrue, whenFalse); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindSelect, Type: t, Inputs: []NodeID{cond, whenTrue, whenFalse}}), nil
}

func (b *Builder) WriteReg(offset int, value NodeID) (NodeID, error) {
	if err := b.checkInputs("WriteReg", value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindWriteReg, RegOffset: offset, Inputs: []NodeID{value}}), nil
}

func (b *Builder) WriteMem(addr, value NodeID) (NodeID, error) {
	if err := b.checkInputs("WriteMem", addr, value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindWriteMem, Inputs: []NodeID{addr, value}}), nil
}

func (b *Builder) WritePC(value NodeID) (NodeID, error) {
	if err := b.checkInputs("WritePC", value); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindWritePC, Inputs: []NodeID{value}}), nil
}

// InternalCall invokes fn with args, tagging the node with effect so
// EndPacket can derive the right PacketType.
func (b *Builder) InternalCall(fn *InternalFunction, effect InternalCallEffect, args ...NodeID) (NodeID, error) {
	if err := b.checkInputs("InternalCall", args...); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindInternalCall, Callee: fn, Effect: effect, Inputs: args}), nil
}

// Br marks the packet as ending in a control transfer; isCall
// distinguishes a call (return address already pushed by a prior
// write_mem) from a plain jump. The transfer target itself is
// expressed by a preceding WritePC.
func (b *Builder) Br(isCall bool) (NodeID, error) {
	if err := b.checkInputs("Br"); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindBr, IsCall: isCall}), nil
}

// Ret marks the packet as a return; the return address itself was
// already produced by a preceding ReadMem+WritePC pair.
func (b *Builder) Ret() (NodeID, error) {
	if err := b.checkInputs("Ret"); err != nil {
		return 0, err
	}
	return b.emit(Node{Kind: KindRet}), nil
}
