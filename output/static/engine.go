// Package static implements the boundary-only static output path:
// lowering IR chunks to position-independent host code via the same
// node lowering output/dynamic/x86 uses for JIT translations, then
// linking the result into a minimal standalone ELF64 executable.
package static

import (
	"bytes"
	"fmt"

	abi "arancini/abi/x86"
	"arancini/format/elf"
	"arancini/ir"
	"arancini/output/dynamic"
	x86 "arancini/output/dynamic/x86"
)

// loadVaddr is the fixed load address of the generated non-PIE
// executable; txlat output never needs to be position-independent
// since it's a one-shot translation of a single flat instruction
// stream, not a shared library.
const loadVaddr = 0x400000

// Engine accumulates lowered chunks into one flat code buffer and
// links them into an executable on Generate. Unlike runtime/dbt's
// Engine, there is no caching or chaining here: AddChunk lowers every
// block it's given once, in order, satisfying the dynamic core's
// "reproducible chunk ordering" obligation to this boundary by
// construction (chunks are appended in the order AddChunk is called).
type Engine struct {
	code bytes.Buffer
}

// NewEngine constructs an empty static engine.
func NewEngine() *Engine { return &Engine{} }

// AddChunk lowers every block of chunk in order and appends the
// resulting machine code to the engine's buffer. Chunks are
// self-contained by construction (NodeID never crosses a Packet or
// Chunk boundary), so nothing here needs cross-chunk bookkeeping.
func (e *Engine) AddChunk(chunk *ir.Chunk) error {
	for _, block := range chunk.Blocks {
		if len(block.Packets) == 0 {
			continue
		}
		if err := e.addBlock(block); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) addBlock(block *ir.Block) error {
	w, err := dynamic.NewCodeWriter()
	if err != nil {
		return fmt.Errorf("static: allocate code writer: %w", err)
	}
	defer w.Release()

	backend := x86.NewBackend()
	ctx := dynamic.NewContext(backend, w)

	valueSlots := 0
	for _, pkt := range block.Packets {
		if n := len(pkt.Nodes); n > valueSlots {
			valueSlots = n
		}
	}
	if err := ctx.BeginBlock(valueSlots); err != nil {
		return err
	}
	for _, pkt := range block.Packets {
		if err := ctx.BeginInstruction(pkt); err != nil {
			return err
		}
		for i := range pkt.Nodes {
			if err := ctx.Lower(pkt.Node(ir.NodeID(i))); err != nil {
				return err
			}
		}
		if err := ctx.EndInstruction(); err != nil {
			return err
		}
	}
	// Static output never chains between blocks (there is no
	// ChainTable patching a standalone binary after the fact): every
	// block ends with the same return-to-caller epilogue, so the entry
	// stub's single top-level call runs only the first block, and
	// control never passes on to the block that follows it in the flat
	// code buffer.
	if err := ctx.EndBlock(dynamic.ExitToDispatcher); err != nil {
		return err
	}

	code, err := w.Finalise()
	if err != nil {
		return fmt.Errorf("static: finalise block: %w", err)
	}
	e.code.Write(code)
	return nil
}

// Generate links everything added so far into a minimal standalone
// ELF64 executable. The emitted entry stub sets up the native-entry
// ABI (cpu_state in RDI, memory in RSI) the lowered blocks expect,
// calls straight into the first block, and turns its RAX exit reason
// into a process exit code via the exit(2) syscall — there is no
// runtime/exec dispatch loop in a static binary, so ExitSyscall and
// ExitInterrupt exits simply surface as that exit code rather than
// being serviced.
func (e *Engine) Generate() ([]byte, error) {
	blockCode := e.code.Bytes()
	stub := buildEntryStub(loadVaddr, len(blockCode))

	fileBytes := append(append([]byte{}, stub...), blockCode...)

	cpuStateOff := alignUp(len(fileBytes), 16)
	memoryOff := alignUp(cpuStateOff+abi.StateSize, 16)
	const guestMemorySize = 1 << 20 // 1 MiB of zero-filled guest address space
	bssSize := uint64(memoryOff + guestMemorySize - len(fileBytes))

	entry := uint64(loadVaddr) + uint64(execHeaderSizeConst())

	var out bytes.Buffer
	if err := elf.WriteExecutable(&out, loadVaddr, fileBytes, bssSize, entry); err != nil {
		return nil, fmt.Errorf("static: write executable: %w", err)
	}
	return out.Bytes(), nil
}

// GenerateObject links everything added so far into a relocatable
// ET_REL object file instead of a standalone executable: one .text
// section holding the flat lowered code, with a single global symbol
// marking its entry point. This is the object-output counterpart to
// Generate, for callers that want to feed the translated code to an
// external linker rather than run it directly.
func (e *Engine) GenerateObject() ([]byte, error) {
	code := e.code.Bytes()

	f := elf.NewFile()
	text := f.AddSection(".text", elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR, code)
	text.Addralign = 16
	f.AddSymbol("translated_entry", elf.MakeSymbolInfo(elf.STB_GLOBAL, elf.STT_FUNC), text, 0, uint64(len(code)))

	var out bytes.Buffer
	if err := f.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("static: write object: %w", err)
	}
	return out.Bytes(), nil
}

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }

// buildEntryStub emits:
//
//	movabs rdi, cpuStateAddr
//	movabs rsi, memoryAddr
//	movabs rax, blockEntryAddr
//	call   rax
//	mov    edi, eax
//	mov    eax, 60   ; SYS_exit
//	syscall
//
// The addresses are resolved relative to loadVaddr and the stub's own
// fixed 41-byte length, computed before the stub itself is built so
// there's no chicken-and-egg between the stub's size and its contents.
func buildEntryStub(base uint64, blockLen int) []byte {
	const stubLen = 41
	headerLen := execHeaderSizeConst()
	fileLen := func(extraAfterStub int) int { return stubLen + blockLen + extraAfterStub }
	cpuStateOff := alignUp(fileLen(0), 16)
	memoryOff := alignUp(cpuStateOff+abi.StateSize, 16)

	cpuStateAddr := base + uint64(headerLen) + uint64(cpuStateOff)
	memoryAddr := base + uint64(headerLen) + uint64(memoryOff)
	blockEntryAddr := base + uint64(headerLen) + uint64(stubLen)

	var b bytes.Buffer
	movAbs(&b, 7 /*rdi*/, cpuStateAddr)
	movAbs(&b, 6 /*rsi*/, memoryAddr)
	movAbs(&b, 0 /*rax*/, blockEntryAddr)
	b.Write([]byte{0xFF, 0xD0})       // call rax
	b.Write([]byte{0x89, 0xC7})       // mov edi, eax
	b.Write([]byte{0xB8, 0x3C, 0, 0, 0}) // mov eax, 60
	b.Write([]byte{0x0F, 0x05})       // syscall
	return b.Bytes()
}

func movAbs(b *bytes.Buffer, reg int, imm uint64) {
	rex := byte(0x48)
	if reg&8 != 0 {
		rex |= 0x01
	}
	b.WriteByte(rex)
	b.WriteByte(0xB8 + byte(reg&7))
	var lo [8]byte
	for i := 0; i < 8; i++ {
		lo[i] = byte(imm >> uint(8*i))
	}
	b.Write(lo[:])
}

// execHeaderSizeConst mirrors format/elf's fixed Ehdr+single-Phdr
// layout (WriteExecutable always emits exactly one program header),
// kept in sync with that package rather than imported as a constant
// since format/elf intentionally exposes no layout details to callers
// beyond the function itself.
func execHeaderSizeConst() int { return 64 + 56 }
