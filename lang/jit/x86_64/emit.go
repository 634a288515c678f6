// Package x86_64 is the JIT back end's SysV AMD64 emitter.
// It is the most fully realized of the seven per-ISA emitters the JIT
// supports, used as the flagship target alongside x86/386. Register
// numbering comes from golang.org/x/arch's x86asm constants even though
// this package hand-encodes instructions rather than disassembling
// them.
//
// Register assignment for the whole compiled function:
//
//	RBX  reserved: the Environment pointer (NativeEntry's first argument)
//	R12  reserved: the active Frame's tmpvar base (NativeEntry's second argument)
//
// Both are callee-saved under the SysV AMD64 ABI, so they survive the
// out-of-line calls CallHelper emits without being reloaded. Every
// helper call passes exactly two arguments — RDI=env, RSI=the resolved
// CallArgsCell's address — per jit/abi's CallHelper contract.
package x86_64

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/tamakomori/linguine/lang/jit/abi"
	"github.com/tamakomori/linguine/lang/jit/asmutil"
)

// regEnv and regFrame name the two reserved registers in x86asm's
// vocabulary purely for documentation/assertion purposes: this package
// encodes bytes directly rather than going through x86asm's encoder, but
// grounding the register choice in x86asm.RBX/x86asm.R12 keeps the
// encoding traceable to a named register rather than a bare integer.
var (
	regEnv   = x86asm.RBX
	regFrame = x86asm.R12
)

func init() {
	// Asserted once at package init, not per-compile: a cheap sanity check
	// that the register constants used below still mean what this file
	// assumes.
	if regEnv.String() != "RBX" || regFrame.String() != "R12" {
		panic("jit/x86_64: unexpected x86asm register string form")
	}
}

const (
	valueSize     = 16 // value.ValueSize
	payloadOffset = 8  // value.PayloadOffset
)

type emitter struct {
	b   abi.Builder
	buf asmutil.Buf

	skipTrampolineSite int
}

// New returns an Emitter that compiles LIR bytecode to SysV AMD64 machine
// code, driven against b for labels, the trampoline offset, helper
// addresses and call-argument cells.
func New(b abi.Builder) abi.Emitter {
	return &emitter{b: b}
}

func disp(idx int, field int32) int32 { return int32(idx)*valueSize + field }

// rex builds a REX prefix byte. w selects 64-bit operand size; r/x/b are
// the extension bits for the ModRM reg, SIB index and ModRM rm/SIB base
// fields respectively.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

// memR12 emits "reg OP [r12+d]" style ModRM+SIB+disp32 bytes for base
// register r12, which — like rsp — requires an explicit SIB byte even
// for simple base+disp32 addressing.
func memR12ModRM(reg int) byte { return 0x80 | byte(reg&7)<<3 | 0x04 }
func sibR12() byte             { return 0x24 } // scale=00, index=100 (none), base=100 (r12&7)

// loadR12_32 emits mov reg32, dword [r12+d].
func (e *emitter) loadR12_32(reg int, d int32) {
	e.buf.U8(rex(false, reg >= 8, false, true))
	e.buf.U8(0x8B)
	e.buf.U8(memR12ModRM(reg))
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(d))
}

// storeR12_32 emits mov dword [r12+d], reg32.
func (e *emitter) storeR12_32(d int32, reg int) {
	e.buf.U8(rex(false, reg >= 8, false, true))
	e.buf.U8(0x89)
	e.buf.U8(memR12ModRM(reg))
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(d))
}

// storeR12Imm32 emits mov dword [r12+d], imm32.
func (e *emitter) storeR12Imm32(d int32, imm uint32) {
	e.buf.U8(rex(false, false, false, true))
	e.buf.U8(0xC7)
	e.buf.U8(0x80 | 0x04) // mod=10, reg=/0, rm=100 (SIB)
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(d))
	e.buf.U32LE(imm)
}

// loadR12_64/storeR12_64 are the 64-bit (REX.W) counterparts, used by
// Move to copy a whole 16-byte Value in two 8-byte halves.
func (e *emitter) loadR12_64(reg int, d int32) {
	e.buf.U8(rex(true, reg >= 8, false, true))
	e.buf.U8(0x8B)
	e.buf.U8(memR12ModRM(reg))
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(d))
}

func (e *emitter) storeR12_64(d int32, reg int) {
	e.buf.U8(rex(true, reg >= 8, false, true))
	e.buf.U8(0x89)
	e.buf.U8(memR12ModRM(reg))
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(d))
}

// movRegReg64 emits mov dst64, src64 (register to register).
func (e *emitter) movRegReg64(dst, src int) {
	e.buf.U8(rex(true, src >= 8, false, dst >= 8))
	e.buf.U8(0x89)
	e.buf.U8(0xC0 | byte(src&7)<<3 | byte(dst&7))
}

// movabs emits a 64-bit immediate load: mov reg64, imm64.
func (e *emitter) movabs(reg int, imm uint64) {
	e.buf.U8(rex(true, false, false, reg >= 8))
	e.buf.U8(0xB8 + byte(reg&7))
	e.buf.U64LE(imm)
}

const (
	rAX = 0
	rCX = 1
	rDX = 2
	rBX = 3
	rSP = 4
	rBP = 5
	rSI = 6
	rDI = 7
	r12 = 12
)

func (e *emitter) Prologue() {
	e.buf.U8(0x55)                                  // push rbp
	e.buf.Raw([]byte{0x48, 0x89, 0xE5})              // mov rbp, rsp
	e.buf.U8(0x53)                                  // push rbx
	e.buf.Raw([]byte{0x41, 0x54})                    // push r12
	e.movRegReg64(rBX, rDI)                          // mov rbx, rdi (env)
	e.movRegReg64(r12, rSI)                          // mov r12, rsi (frame tmpvar base)
	e.buf.U8(0xE9)                                   // jmp rel32 (placeholder, past trampoline)
	e.skipTrampolineSite = e.buf.Reserve(4)
}

func (e *emitter) Trampoline() int {
	off := e.buf.Len()
	e.buf.Raw([]byte{0x41, 0x5C}) // pop r12
	e.buf.U8(0x5B)                // pop rbx
	e.buf.U8(0x5D)                // pop rbp
	e.buf.Raw([]byte{0x31, 0xC0}) // xor eax, eax
	e.buf.U8(0xC3)                // ret
	resume := e.buf.Len()
	d := int32(resume - (e.skipTrampolineSite + 4))
	e.buf.PatchU32LE(e.skipTrampolineSite, uint32(d))
	return off
}

func (e *emitter) Epilogue() {
	e.buf.Raw([]byte{0x41, 0x5C})                         // pop r12
	e.buf.U8(0x5B)                                         // pop rbx
	e.buf.U8(0x5D)                                         // pop rbp
	e.buf.Raw([]byte{0xB8, 0x01, 0x00, 0x00, 0x00})        // mov eax, 1
	e.buf.U8(0xC3)                                         // ret
}

func (e *emitter) Label(lpc int) { e.b.MarkLabel(lpc, e.buf.Len()) }

func (e *emitter) ConstInt(dst int, v int32) {
	e.storeR12Imm32(disp(dst, 0), 0) // Kind = KindInt
	e.storeR12Imm32(disp(dst, 8), uint32(v))
	e.storeR12Imm32(disp(dst, 12), 0)
}

func (e *emitter) ConstFloat(dst int, bits uint32) {
	e.storeR12Imm32(disp(dst, 0), 1) // Kind = KindFloat
	e.storeR12Imm32(disp(dst, 8), bits)
	e.storeR12Imm32(disp(dst, 12), 0)
}

func (e *emitter) Move(dst, src int) {
	e.loadR12_64(rAX, disp(src, 0))
	e.storeR12_64(disp(dst, 0), rAX)
	e.loadR12_64(rAX, disp(src, payloadOffset))
	e.storeR12_64(disp(dst, payloadOffset), rAX)
}

// Inc increments an Int tmpvar in place, branching to the trampoline on
// a type mismatch exactly as interp.Run's INC case does; the inline
// sequence covers this guard, not just the bare increment.
func (e *emitter) Inc(dst int) {
	e.buf.U8(rex(false, false, false, true))
	e.buf.U8(0x81) // cmp dword [r12+d], imm32 (group 1, /7)
	e.buf.U8(0x80 | 0x07<<3 | 0x04)
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(disp(dst, 0)))
	e.buf.U32LE(0) // KindInt == 0
	e.buf.Raw([]byte{0x0F, 0x85})
	site := e.buf.Reserve(4)
	tramp := e.b.TrampolineOffset()
	d := int32(tramp - (site + 4))
	e.buf.PatchU32LE(site, uint32(d))

	e.buf.U8(rex(false, false, false, true))
	e.buf.U8(0x81) // add dword [r12+d], imm32 (/0)
	e.buf.U8(memR12ModRM(0))
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(disp(dst, 8)))
	e.buf.U32LE(1)
}

func (e *emitter) CompareEqualInt(a, b int) {
	e.loadR12_32(rAX, disp(a, payloadOffset))
	e.buf.U8(rex(false, false, false, true))
	e.buf.U8(0x3B) // cmp eax, dword [r12+d]
	e.buf.U8(memR12ModRM(rAX))
	e.buf.U8(sibR12())
	e.buf.U32LE(uint32(disp(b, payloadOffset)))
}

func (e *emitter) StoreFlagsAsInt(dst int) {
	e.storeR12Imm32(disp(dst, 0), 0) // KindInt; mov to mem leaves flags untouched
	e.buf.Raw([]byte{0x0F, 0x94, 0xC0}) // sete al
	e.buf.Raw([]byte{0x0F, 0xB6, 0xC0}) // movzx eax, al
	e.storeR12_32(disp(dst, 8), rAX)
	e.storeR12Imm32(disp(dst, 12), 0)
}

// callOutOfLine is the common body of CallHelper and the truth-testing
// branch opcodes: load env/cell into the first two argument registers,
// call the resolved helper address, leave its int32 result in eax.
func (e *emitter) callOutOfLine(addr, cellAddr uint64) {
	e.movRegReg64(rDI, rBX)
	e.movabs(rSI, cellAddr)
	e.movabs(rAX, addr)
	e.buf.Raw([]byte{0xFF, 0xD0}) // call rax
}

func (e *emitter) CallHelper(id abi.HelperID, cellAddr uintptr) {
	e.callOutOfLine(uint64(e.b.HelperAddr(id)), uint64(cellAddr))
	e.buf.Raw([]byte{0x85, 0xC0}) // test eax, eax
	e.buf.Raw([]byte{0x0F, 0x84}) // jz trampoline
	site := e.buf.Reserve(4)
	tramp := e.b.TrampolineOffset()
	d := int32(tramp - (site + 4))
	e.buf.PatchU32LE(site, uint32(d))
}

func (e *emitter) Jump(targetLPC int) int {
	e.buf.U8(0xE9) // jmp rel32
	return e.buf.Reserve(4)
}

func (e *emitter) branchOnTruth(src int, wantTrue bool) int {
	cellAddr := e.b.NewCell(0, src, 0, "", nil)
	e.callOutOfLine(uint64(e.b.HelperAddr(abi.HelperTruth)), uint64(cellAddr))
	e.buf.Raw([]byte{0x85, 0xC0}) // test eax, eax
	if wantTrue {
		e.buf.Raw([]byte{0x0F, 0x85}) // jnz target
	} else {
		e.buf.Raw([]byte{0x0F, 0x84}) // jz target
	}
	return e.buf.Reserve(4)
}

func (e *emitter) BranchIfTrue(src int, targetLPC int) int  { return e.branchOnTruth(src, true) }
func (e *emitter) BranchIfFalse(src int, targetLPC int) int { return e.branchOnTruth(src, false) }

func (e *emitter) BranchIfFlags(targetLPC int) int {
	e.buf.Raw([]byte{0x0F, 0x84}) // je rel32 (ZF set by the preceding CompareEqualInt/StoreFlagsAsInt)
	return e.buf.Reserve(4)
}

func (e *emitter) Patch(site, nativeTarget int, kind abi.PatchKind) error {
	if site < 0 || site+4 > e.buf.Len() {
		return fmt.Errorf("jit/x86_64: patch site %d out of range", site)
	}
	d := int32(nativeTarget - (site + 4))
	e.buf.PatchU32LE(site, uint32(d))
	return nil
}

func (e *emitter) Bytes() []byte { return e.buf.Bytes() }
