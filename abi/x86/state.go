// Package x86 defines the fixed byte-offset layout of the guest x86-64
// CPU state block shared by the lifter (input/x86), the host backend
// (output/dynamic/x86) and the execution runtime (runtime/exec). It
// has no dependency on ir or runtime/exec so all three can import it
// without creating a cycle.
package x86

// Byte offsets into the CPU state block. Every general-purpose and
// flag register is a fixed offset so read_reg/write_reg nodes, the
// host backend's spill slots, and the runtime's native-entry ABI all
// agree on the same struct without sharing a Go type across packages.
const (
	OffPC = 0 * 8

	OffRAX = 1 * 8
	OffRCX = 2 * 8
	OffRDX = 3 * 8
	OffRBX = 4 * 8
	OffRSP = 5 * 8
	OffRBP = 6 * 8
	OffRSI = 7 * 8
	OffRDI = 8 * 8

	OffR8  = 9 * 8
	OffR9  = 10 * 8
	OffR10 = 11 * 8
	OffR11 = 12 * 8
	OffR12 = 13 * 8
	OffR13 = 14 * 8
	OffR14 = 15 * 8
	OffR15 = 16 * 8

	// Flags are packed one-byte-per-flag rather than bit-packed into
	// a single word, trading 7 bytes of padding for code that can
	// read_reg/write_reg a flag without a mask-and-shift on every
	// access — the same tradeoff the lifted IR already makes for
	// general-purpose registers.
	OffFlagsBase = 17 * 8
	OffZF        = OffFlagsBase + 0
	OffCF        = OffFlagsBase + 1
	OffOF        = OffFlagsBase + 2
	OffSF        = OffFlagsBase + 3
	OffPF        = OffFlagsBase + 4
	OffDF        = OffFlagsBase + 5
	OffAF        = OffFlagsBase + 6

	offAfterFlags = OffFlagsBase + 8 // padded to the next 8-byte slot

	OffXMMBase = offAfterFlags // 16 lanes * 16 bytes each
	xmmStride  = 16
	xmmCount   = 16

	offAfterXMM = OffXMMBase + xmmStride*xmmCount

	OffFS = offAfterXMM
	OffGS = OffFS + 8

	OffX87Control = OffGS + 8

	// OffCallArg holds the single argument an internal_call node passes
	// across the native-entry boundary (an interrupt vector, mainly)
	// when the block exits with ExitSyscall or ExitInterrupt: the host
	// backend writes it here instead of calling back into Go code from
	// JIT'd machine code, and runtime/exec.Context.Run reads it after
	// callNative returns.
	OffCallArg = OffX87Control + 8

	// StateSize is the total size of the CPU state block; rounded up
	// to a 16-byte boundary so XMM loads/stores can stay aligned.
	StateSize = (OffCallArg + 8 + 15) &^ 15
)

// Exit reason codes returned by a translation's native entry point:
// 0 always means "resume the dispatch loop at the PC the translation
// wrote to cpu_state"; the other codes tell runtime/exec.Context.Run
// which internal function to service before resuming, with
// OffCallArg carrying the one piece of data it needs.
const (
	ExitNormal = iota
	ExitSyscall
	ExitInterrupt
	ExitHalt
)

// XMMOffset returns the byte offset of XMM register n (0-15).
func XMMOffset(n int) int { return OffXMMBase + n*xmmStride }

// GPROffset maps an x86 GPR index (the Mod/RM "reg" encoding, 0=RAX
// through 15=R15) to its CPU-state offset.
func GPROffset(reg int) int {
	switch reg {
	case 0:
		return OffRAX
	case 1:
		return OffRCX
	case 2:
		return OffRDX
	case 3:
		return OffRBX
	case 4:
		return OffRSP
	case 5:
		return OffRBP
	case 6:
		return OffRSI
	case 7:
		return OffRDI
	case 8:
		return OffR8
	case 9:
		return OffR9
	case 10:
		return OffR10
	case 11:
		return OffR11
	case 12:
		return OffR12
	case 13:
		return OffR13
	case 14:
		return OffR14
	case 15:
		return OffR15
	default:
		return -1
	}
}
