package dynamic

import "arancini/ir"

type state int

const (
	stateIdle state = iota
	stateBlockOpen
	stateInInstr
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateBlockOpen:
		return "BlockOpen"
	case stateInInstr:
		return "InInstr"
	default:
		return "unknown"
	}
}

// Context drives one Backend through the translation FSM:
// Idle -> BlockOpen (BeginBlock) -> InInstr (BeginInstruction) ->
// BlockOpen (EndInstruction) -> Idle (EndBlock). Lower is only valid
// while InInstr; any other transition attempted out of sequence
// returns BackendStateError rather than silently doing the wrong
// thing.
type Context struct {
	backend Backend
	writer  *CodeWriter
	state   state
	packet  *ir.Packet
}

func NewContext(backend Backend, writer *CodeWriter) *Context {
	return &Context{backend: backend, writer: writer, state: stateIdle}
}

func (c *Context) BeginBlock(valueSlots int) error {
	if c.state != stateIdle {
		return &BackendStateError{Called: "BeginBlock", State: c.state.String()}
	}
	c.state = stateBlockOpen
	return c.backend.LowerPrologue(c.writer, valueSlots)
}

// BeginInstruction opens the packet being lowered; pkt is retained so
// Lower can resolve operand nodes by NodeID.
func (c *Context) BeginInstruction(pkt *ir.Packet) error {
	if c.state != stateBlockOpen {
		return &BackendStateError{Called: "BeginInstruction", State: c.state.String()}
	}
	c.state = stateInInstr
	c.packet = pkt
	return nil
}

// Lower hands one IR node to the backend. Only valid in InInstr.
func (c *Context) Lower(n *ir.Node) error {
	if c.state != stateInInstr {
		return &BackendStateError{Called: "Lower", State: c.state.String()}
	}
	return c.backend.Lower(c.packet, n, c.writer)
}

func (c *Context) EndInstruction() error {
	if c.state != stateInInstr {
		return &BackendStateError{Called: "EndInstruction", State: c.state.String()}
	}
	c.state = stateBlockOpen
	c.packet = nil
	return nil
}

func (c *Context) EndBlock(exit ExitKind) error {
	if c.state != stateBlockOpen {
		return &BackendStateError{Called: "EndBlock", State: c.state.String()}
	}
	c.state = stateIdle
	return c.backend.LowerEpilogue(c.writer, exit)
}
