package ir

// Kind tags every node in the IR. Value kinds produce a typed result
// consumed by later nodes; action kinds have side effects on guest
// state; boundary kinds bracket a packet.
type Kind uint8

const (
	KindStart Kind = iota
	KindEnd

	// value nodes
	KindConstant
	KindReadReg
	KindReadMem
	KindBinaryArith
	KindShift
	KindBitExtract
	KindNot
	KindZeroExtend
	KindSignExtend
	KindBitcast
	KindSelect

	// action nodes
	KindWriteReg
	KindWriteMem
	KindWritePC
	KindInternalCall
	KindBr
	KindRet
)

func (k Kind) IsValue() bool {
	return k >= KindConstant && k <= KindSelect
}

func (k Kind) IsAction() bool {
	return k >= KindWriteReg && k <= KindRet
}

func (k Kind) IsBoundary() bool {
	return k == KindStart || k == KindEnd
}

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindConstant:
		return "constant"
	case KindReadReg:
		return "read_reg"
	case KindReadMem:
		return "read_mem"
	case KindBinaryArith:
		return "binary_arith"
	case KindShift:
		return "shift"
	case KindBitExtract:
		return "bit_extract"
	case KindNot:
		return "not"
	case KindZeroExtend:
		return "zero_extend"
	case KindSignExtend:
		return "sign_extend"
	case KindBitcast:
		return "bitcast"
	case KindSelect:
		return "select"
	case KindWriteReg:
		return "write_reg"
	case KindWriteMem:
		return "write_mem"
	case KindWritePC:
		return "write_pc"
	case KindInternalCall:
		return "internal_call"
	case KindBr:
		return "br"
	case KindRet:
		return "ret"
	default:
		return "unknown"
	}
}

// NodeID is a forward-only reference to another node's output port
// within the same packet's arena. A node's Inputs may only name IDs
// strictly less than its own, which makes the IR acyclic by
// construction and lets a single pass evaluate it in ID order.
type NodeID int

// InternalCallEffect classifies what an internal_call node means for
// packet-type derivation, set by the translator that creates it rather
// than inferred from the callee name, so higher layers can register
// new helpers without teaching the IR core their names.
type InternalCallEffect uint8

const (
	EffectNormal InternalCallEffect = iota
	EffectSyscall
	EffectInterrupt
	EffectEndOfBlock
)

// Node is the single tagged-union representation for every node kind.
// Only the fields relevant to Kind are meaningful; this mirrors the
// arena-of-indices design used throughout the IR rather than a family
// of small per-kind struct types, so a Packet's node arena is a flat
// []Node with no pointer chasing.
type Node struct {
	ID     NodeID
	Kind   Kind
	Type   ValueType // output type; None for action/boundary nodes
	Inputs []NodeID  // operand references, each < ID

	// value-node payload
	ConstValue  uint64
	RegOffset   int // read_reg / write_reg
	MemSegment  Segment
	ArithOp     ArithOp
	ShiftOp     ShiftOp
	ExtractLo   int
	ExtractHi   int
	Disasm      string // optional debug text; the builder leaves it empty (Packet.Disasm holds the instruction's text)

	// action-node payload
	IsCall   bool                // br: true selects PacketCall over PacketBranch
	Callee   *InternalFunction   // internal_call
	Effect   InternalCallEffect  // internal_call
}

// Segment names an x86 segment override used by a memory operand; it
// has no meaning outside input/x86 but lives on the generic node so
// the IR core doesn't need an x86-specific node kind for it.
type Segment uint8

const (
	SegNone Segment = iota
	SegFS
	SegGS
)
