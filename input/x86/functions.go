package x86

import "arancini/ir"

// FunctionProvider creates the fixed set of internal functions the x86
// lifter itself calls into: the trap/poison/halt helpers. Higher layers
// may wrap this provider to add more names (e.g. a debug personality's
// own helpers) without this lifter needing to know about them.
type FunctionProvider struct{}

func (FunctionProvider) Create(name string) (*ir.InternalFunction, bool) {
	switch name {
	case "handle_int":
		return &ir.InternalFunction{Name: name, Type: ir.FunctionType{Ret: ir.None, Args: []ir.ValueType{ir.U32()}}}, true
	case "handle_syscall":
		return &ir.InternalFunction{Name: name, Type: ir.FunctionType{Ret: ir.None}}, true
	case "handle_poison":
		return &ir.InternalFunction{Name: name, Type: ir.FunctionType{Ret: ir.None, Args: []ir.ValueType{ir.U64()}}}, true
	case "hlt":
		return &ir.InternalFunction{Name: name, Type: ir.FunctionType{Ret: ir.None}}, true
	default:
		return nil, false
	}
}
