//go:build amd64

package exec

import "unsafe"

// callNative enters a finalised translation at entry using the
// native-entry ABI: RDI=cpu_state, RSI=memory,
// return value in RAX (0 = resume the dispatch loop at the PC the
// translation wrote back into cpu_state; nonzero = an exit reason for
// Context.Run, which services ExitSyscall and ExitInterrupt and
// resumes, and halts the thread on ExitHalt or any other value).
// The actual register shuffle and CALL live in call_native_amd64.s,
// since calling through an arbitrary code pointer isn't expressible in
// portable Go.
//
//go:noescape
func callNative(entry uintptr, cpuState, memory unsafe.Pointer) int64

// cpuStatePtr and memoryPtr convert the Go-owned backing slices to the
// raw pointers callNative's assembly expects; both regions outlive the
// call (State for the thread's lifetime, Memory for the context's), so
// there's nothing for the Go GC to lose track of across the boundary.
func cpuStatePtr(state []byte) unsafe.Pointer {
	if len(state) == 0 {
		return nil
	}
	return unsafe.Pointer(&state[0])
}

func memoryPtr(mem []byte) unsafe.Pointer {
	if len(mem) == 0 {
		return nil
	}
	return unsafe.Pointer(&mem[0])
}
