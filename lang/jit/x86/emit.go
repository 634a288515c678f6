// Package x86 is the JIT back end's 32-bit (386) emitter,
// the second of the two x86 family targets golang.org/x/arch's x86asm
// package grounds (see jit/x86_64's package doc for the shared rationale).
//
// Register assignment:
//
//	EBX  reserved: the Environment pointer
//	ESI  reserved: the active Frame's tmpvar base
//
// Both are callee-saved under the cdecl convention this package assumes
// for its own helper calls (there being no fixed OS ABI requirement here,
// since every call target is a helper this same package's call site also
// controls the shape of). Helper arguments are passed on the stack,
// right to left, cdecl-style: push cellAddr, push env, call, caller
// cleans up.
package x86

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/tamakomori/linguine/lang/jit/abi"
	"github.com/tamakomori/linguine/lang/jit/asmutil"
)

var (
	regEnv   = x86asm.EBX
	regFrame = x86asm.ESI
)

func init() {
	if regEnv.String() != "EBX" || regFrame.String() != "ESI" {
		panic("jit/x86: unexpected x86asm register string form")
	}
}

const (
	valueSize     = 16
	payloadOffset = 8
)

const (
	eAX = 0
	eCX = 1
	eDX = 2
	eBX = 3
	eSI = 6
	eDI = 7
)

type emitter struct {
	b   abi.Builder
	buf asmutil.Buf

	skipTrampolineSite int
}

// New returns an Emitter that compiles LIR bytecode to 32-bit x86 machine
// code.
func New(b abi.Builder) abi.Emitter { return &emitter{b: b} }

func disp(idx int, field int32) int32 { return int32(idx)*valueSize + field }

func modrmESI(reg int) byte { return 0x80 | byte(reg&7)<<3 | byte(eSI) }

func (e *emitter) loadESI(reg int, d int32) {
	e.buf.U8(0x8B)
	e.buf.U8(modrmESI(reg))
	e.buf.U32LE(uint32(d))
}

func (e *emitter) storeESI(d int32, reg int) {
	e.buf.U8(0x89)
	e.buf.U8(modrmESI(reg))
	e.buf.U32LE(uint32(d))
}

func (e *emitter) storeESIImm32(d int32, imm uint32) {
	e.buf.U8(0xC7)
	e.buf.U8(0x80 | byte(eSI)) // mod=10, reg=/0, rm=ESI
	e.buf.U32LE(uint32(d))
	e.buf.U32LE(imm)
}

func (e *emitter) movRegReg(dst, src int) {
	e.buf.U8(0x89)
	e.buf.U8(0xC0 | byte(src&7)<<3 | byte(dst&7))
}

func (e *emitter) movImm32(reg int, imm uint32) {
	e.buf.U8(0xB8 + byte(reg&7))
	e.buf.U32LE(imm)
}

func (e *emitter) Prologue() {
	e.buf.U8(0x55)               // push ebp
	e.buf.Raw([]byte{0x89, 0xE5}) // mov ebp, esp
	e.buf.U8(0x53)               // push ebx
	e.buf.U8(0x56)               // push esi
	// cdecl args: [ebp+8]=env, [ebp+12]=frame
	e.buf.Raw([]byte{0x8B, 0x5D, 0x08}) // mov ebx, [ebp+8]
	e.buf.Raw([]byte{0x8B, 0x75, 0x0C}) // mov esi, [ebp+12]
	e.buf.U8(0xE9)                      // jmp rel32
	e.skipTrampolineSite = e.buf.Reserve(4)
}

func (e *emitter) Trampoline() int {
	off := e.buf.Len()
	e.buf.U8(0x5E) // pop esi
	e.buf.U8(0x5B) // pop ebx
	e.buf.U8(0x5D) // pop ebp
	e.buf.Raw([]byte{0x31, 0xC0}) // xor eax, eax
	e.buf.U8(0xC3)
	resume := e.buf.Len()
	d := int32(resume - (e.skipTrampolineSite + 4))
	e.buf.PatchU32LE(e.skipTrampolineSite, uint32(d))
	return off
}

func (e *emitter) Epilogue() {
	e.buf.U8(0x5E)
	e.buf.U8(0x5B)
	e.buf.U8(0x5D)
	e.buf.Raw([]byte{0xB8, 0x01, 0x00, 0x00, 0x00})
	e.buf.U8(0xC3)
}

func (e *emitter) Label(lpc int) { e.b.MarkLabel(lpc, e.buf.Len()) }

func (e *emitter) ConstInt(dst int, v int32) {
	e.storeESIImm32(disp(dst, 0), 0)
	e.storeESIImm32(disp(dst, 8), uint32(v))
	e.storeESIImm32(disp(dst, 12), 0)
}

func (e *emitter) ConstFloat(dst int, bits uint32) {
	e.storeESIImm32(disp(dst, 0), 1)
	e.storeESIImm32(disp(dst, 8), bits)
	e.storeESIImm32(disp(dst, 12), 0)
}

func (e *emitter) Move(dst, src int) {
	for _, off := range []int32{0, 4, 8, 12} {
		e.loadESI(eAX, disp(src, off))
		e.storeESI(disp(dst, off), eAX)
	}
}

func (e *emitter) Inc(dst int) {
	e.buf.U8(0x81) // cmp dword [esi+d], imm32 (/7)
	e.buf.U8(0x80 | 0x07<<3 | byte(eSI))
	e.buf.U32LE(uint32(disp(dst, 0)))
	e.buf.U32LE(0)
	e.buf.Raw([]byte{0x0F, 0x85}) // jnz trampoline
	site := e.buf.Reserve(4)
	tramp := e.b.TrampolineOffset()
	e.buf.PatchU32LE(site, uint32(int32(tramp-(site+4))))

	e.buf.U8(0x81) // add dword [esi+d], imm32 (/0)
	e.buf.U8(0x80 | byte(eSI))
	e.buf.U32LE(uint32(disp(dst, 8)))
	e.buf.U32LE(1)
}

func (e *emitter) CompareEqualInt(a, b int) {
	e.loadESI(eAX, disp(a, payloadOffset))
	e.buf.U8(0x3B) // cmp eax, [esi+d]
	e.buf.U8(modrmESI(eAX))
	e.buf.U32LE(uint32(disp(b, payloadOffset)))
}

func (e *emitter) StoreFlagsAsInt(dst int) {
	e.storeESIImm32(disp(dst, 0), 0)
	e.buf.Raw([]byte{0x0F, 0x94, 0xC0}) // sete al
	e.buf.Raw([]byte{0x0F, 0xB6, 0xC0}) // movzx eax, al
	e.storeESI(disp(dst, 8), eAX)
	e.storeESIImm32(disp(dst, 12), 0)
}

func (e *emitter) callOutOfLine(addr, cellAddr uint32) {
	e.buf.U8(0x68) // push cellAddr
	e.buf.U32LE(cellAddr)
	e.buf.U8(0x50 + byte(eBX)) // push ebx (env)
	e.movImm32(eAX, addr)
	e.buf.Raw([]byte{0xFF, 0xD0})       // call eax
	e.buf.Raw([]byte{0x83, 0xC4, 0x08}) // add esp, 8
}

func (e *emitter) CallHelper(id abi.HelperID, cellAddr uintptr) {
	e.callOutOfLine(uint32(e.b.HelperAddr(id)), uint32(cellAddr))
	e.buf.Raw([]byte{0x85, 0xC0})
	e.buf.Raw([]byte{0x0F, 0x84})
	site := e.buf.Reserve(4)
	tramp := e.b.TrampolineOffset()
	e.buf.PatchU32LE(site, uint32(int32(tramp-(site+4))))
}

func (e *emitter) Jump(targetLPC int) int {
	e.buf.U8(0xE9)
	return e.buf.Reserve(4)
}

func (e *emitter) branchOnTruth(src int, wantTrue bool) int {
	cellAddr := e.b.NewCell(0, src, 0, "", nil)
	e.callOutOfLine(uint32(e.b.HelperAddr(abi.HelperTruth)), uint32(cellAddr))
	e.buf.Raw([]byte{0x85, 0xC0})
	if wantTrue {
		e.buf.Raw([]byte{0x0F, 0x85})
	} else {
		e.buf.Raw([]byte{0x0F, 0x84})
	}
	return e.buf.Reserve(4)
}

func (e *emitter) BranchIfTrue(src int, targetLPC int) int  { return e.branchOnTruth(src, true) }
func (e *emitter) BranchIfFalse(src int, targetLPC int) int { return e.branchOnTruth(src, false) }

func (e *emitter) BranchIfFlags(targetLPC int) int {
	e.buf.Raw([]byte{0x0F, 0x84})
	return e.buf.Reserve(4)
}

func (e *emitter) Patch(site, nativeTarget int, kind abi.PatchKind) error {
	if site < 0 || site+4 > e.buf.Len() {
		return fmt.Errorf("jit/x86: patch site %d out of range", site)
	}
	e.buf.PatchU32LE(site, uint32(int32(nativeTarget-(site+4))))
	return nil
}

func (e *emitter) Bytes() []byte { return e.buf.Bytes() }
