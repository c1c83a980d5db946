//go:build amd64

package exec

import (
	"fmt"

	abi "arancini/abi/x86"
	"arancini/internal/dbtlog"
	"arancini/ir"
	x86lift "arancini/input/x86"
	"arancini/runtime/dbt"

	"golang.org/x/sys/unix"
)

// Context owns one guest address space: a fixed-size mmap'd memory
// region shared by every Thread running against it, plus the
// translation engine that fills in guest code on demand.
type Context struct {
	Memory []byte
	Engine *dbt.Engine

	// Syscall and Interrupt service ExitSyscall/ExitInterrupt exits;
	// arg is whatever the internal_call node passed via OffCallArg.
	// Both default to a logging no-op so a context with no guest OS
	// to talk to still runs straight-line guest code.
	Syscall   func(t *Thread, arg uint64)
	Interrupt func(t *Thread, vector uint64)
}

// NewContext allocates a memSize-byte guest memory region and wires an
// Engine whose CodeSource reads guest code directly out of it.
func NewContext(memSize int) (*Context, error) {
	mem, err := unix.Mmap(-1, 0, memSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("exec: mmap guest memory: %w", err)
	}
	c := &Context{Memory: mem}
	resolver := ir.NewFunctionResolver(x86lift.FunctionProvider{})
	c.Engine = dbt.NewEngine(resolver, c.readCode)
	c.Syscall = func(t *Thread, arg uint64) {
		dbtlog.Warn.Printf("unhandled syscall exit, arg=%#x, pc=%#x", arg, t.readPC())
	}
	c.Interrupt = func(t *Thread, vector uint64) {
		dbtlog.Warn.Printf("unhandled interrupt exit, vector=%#x, pc=%#x", vector, t.readPC())
	}
	return c, nil
}

// readCode returns guest memory from pc to the end of the region; the
// lifter only ever consumes as many bytes as the instructions it
// actually decodes need.
func (c *Context) readCode(pc uint64) ([]byte, error) {
	if pc >= uint64(len(c.Memory)) {
		return nil, fmt.Errorf("exec: pc %#x out of bounds (memory size %#x)", pc, len(c.Memory))
	}
	return c.Memory[pc:], nil
}

// Close releases the guest memory region.
func (c *Context) Close() error {
	return unix.Munmap(c.Memory)
}

// Run drives the dispatch loop: resolve a translation for the thread's
// current PC, invoke it, service whatever exit reason it returns, and
// repeat until the thread halts or a translation fails.
func (c *Context) Run(t *Thread) error {
	for !t.halted {
		pc := t.readPC()
		translation, err := c.Engine.Resolve(pc)
		if err != nil {
			t.halted = true
			dbtlog.Warn.Printf("translation failed at pc=%#x: %v", pc, err)
			return err
		}
		translation.Acquire()
		reason := callNative(translation.Entry, cpuStatePtr(t.State), memoryPtr(c.Memory))
		translation.Release()

		switch reason {
		case abi.ExitNormal:
			dbtlog.Debug.Printf("resume at pc=%#x", t.readPC())
		case abi.ExitSyscall:
			c.Syscall(t, t.callArg())
		case abi.ExitInterrupt:
			c.Interrupt(t, t.callArg())
		case abi.ExitHalt:
			t.halted = true
			t.reason = reason
		default:
			t.halted = true
			t.reason = reason
			return fmt.Errorf("exec: translation at pc=%#x returned unrecognized exit reason %d", pc, reason)
		}
	}
	return nil
}
