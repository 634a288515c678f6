// Package ppc32 is the JIT back end's 32-bit PowerPC emitter. The
// Go toolchain has not shipped a GOARCH for 32-bit PowerPC since before
// this project's go.mod-declared minimum version, so this package is
// never reachable through jit's host-architecture selection (see
// jit/host_*.go) — it exists, like its six siblings, as a real Emitter
// implementation a caller could still invoke directly by name (New), the
// the way toolchains keep ppc32 support alive for embedded
// targets Go itself no longer ships a compiler for. See DESIGN.md.
//
// Register assignment mirrors jit/ppc64 with 32-bit GPRs throughout:
//
//	R14  reserved: the Environment pointer (first arg, R3)
//	R15  reserved: the active Frame's tmpvar base (second arg, R4)
//	R5, R6, R7  scratch
//	R3   helper call return value
package ppc32

import (
	"fmt"

	"github.com/tamakomori/linguine/lang/jit/abi"
	"github.com/tamakomori/linguine/lang/jit/asmutil"
)

const (
	valueSize     = 16
	payloadOffset = 8
)

const (
	r3  = 3
	r4  = 4
	r5  = 5
	r6  = 6
	r7  = 7
	r11 = 11
	r14 = 14 // env
	r15 = 15 // frame
)

type emitter struct {
	b   abi.Builder
	buf asmutil.Buf

	skipTrampolineSite int
}

// New returns an Emitter that compiles LIR bytecode to 32-bit PowerPC
// machine code.
func New(b abi.Builder) abi.Emitter { return &emitter{b: b} }

func disp(idx int, field int32) int32 { return int32(idx)*valueSize + field }

func (e *emitter) u32(v uint32) { e.buf.U32BE(v) } // historical ppc32 targets are big-endian

func dform(op, rt, ra uint32, d int16) uint32 {
	return (op << 26) | (rt << 21) | (ra << 16) | uint32(uint16(d))
}

func xform(op, rt, ra, rb, xo uint32) uint32 {
	return (op << 26) | (rt << 21) | (ra << 16) | (rb << 11) | (xo << 1)
}

func (e *emitter) li(rt int, imm int16)  { e.u32(dform(14, uint32(rt), 0, imm)) }
func (e *emitter) lis(rt int, imm int16) { e.u32(dform(15, uint32(rt), 0, imm)) }
func (e *emitter) ori(rt, ra int, imm uint16) {
	e.u32((24 << 26) | (uint32(ra) << 21) | (uint32(rt) << 16) | uint32(imm))
}

func (e *emitter) movImm32(rt int, v uint32) {
	e.lis(rt, int16(v>>16))
	e.ori(rt, rt, uint16(v))
}

func (e *emitter) addi(rt, ra int, imm int32) {
	if imm >= -32768 && imm <= 32767 {
		e.u32(dform(14, uint32(rt), uint32(ra), int16(imm)))
		return
	}
	e.movImm32(r7, uint32(imm))
	e.u32(xform(31, uint32(rt), uint32(ra), uint32(r7), 266)) // add rt, ra, r7
}

func (e *emitter) lwz(rt, ra int, off int32) {
	e.addi(r6, ra, off)
	e.u32(dform(32, uint32(rt), uint32(r6), 0))
}

func (e *emitter) stw(ra int, off int32, rs int) {
	e.addi(r6, ra, off)
	e.u32(dform(36, uint32(rs), uint32(r6), 0))
}

func (e *emitter) stwImm(ra int, off int32, imm uint32) {
	e.movImm32(r5, imm)
	e.stw(ra, off, r5)
}

func (e *emitter) mr(rt, rs int) { e.u32(xform(31, uint32(rs), uint32(rt), uint32(rs), 444)) }

func (e *emitter) mtlr(rs int) { e.u32((31 << 26) | (uint32(rs) << 21) | (8 << 16) | (467 << 1)) }

func (e *emitter) Prologue() {
	e.mr(r14, r3)
	e.mr(r15, r4)
	e.u32(18 << 26) // b <past trampoline> (placeholder)
	e.skipTrampolineSite = e.buf.Len() - 4
}

func (e *emitter) Trampoline() int {
	off := e.buf.Len()
	e.li(r3, 0)
	e.u32((19 << 26) | (20 << 21) | (16 << 1)) // blr
	resume := e.buf.Len()
	e.patchB(e.skipTrampolineSite, resume)
	return off
}

func (e *emitter) Epilogue() {
	e.li(r3, 1)
	e.u32((19 << 26) | (20 << 21) | (16 << 1))
}

func (e *emitter) Label(lpc int) { e.b.MarkLabel(lpc, e.buf.Len()) }

func (e *emitter) ConstInt(dst int, v int32) {
	e.stwImm(r15, disp(dst, 0), 0)
	e.stwImm(r15, disp(dst, 8), uint32(v))
	e.stwImm(r15, disp(dst, 12), 0)
}

func (e *emitter) ConstFloat(dst int, bits uint32) {
	e.stwImm(r15, disp(dst, 0), 1)
	e.stwImm(r15, disp(dst, 8), bits)
	e.stwImm(r15, disp(dst, 12), 0)
}

func (e *emitter) Move(dst, src int) {
	for _, off := range []int32{0, 4, 8, 12} {
		e.lwz(r5, r15, disp(src, off))
		e.stw(r15, disp(dst, off), r5)
	}
}

func (e *emitter) Inc(dst int) {
	e.lwz(r5, r15, disp(dst, 0))
	e.u32((11 << 26) | (uint32(r5) << 16) | 0) // cmpwi cr0, r5, 0
	e.u32((16 << 26) | (4 << 21) | (2 << 16) | 0) // bc 4,2,<trampoline> (bne, placeholder)
	site := e.buf.Len() - 4
	e.patchB(site, e.b.TrampolineOffset())

	e.lwz(r5, r15, disp(dst, 8))
	e.addi(r5, r5, 1)
	e.stw(r15, disp(dst, 8), r5)
}

func (e *emitter) CompareEqualInt(a, b int) {
	e.lwz(r5, r15, disp(a, payloadOffset))
	e.lwz(r6, r15, disp(b, payloadOffset))
	e.u32((31 << 26) | (uint32(r5) << 16) | (uint32(r6) << 11) | (0 << 1)) // cmpw cr0, r5, r6
}

func (e *emitter) StoreFlagsAsInt(dst int) {
	e.stwImm(r15, disp(dst, 0), 0)
	e.li(r3, 0)
	e.u32((16 << 26) | (4 << 21) | (2 << 16) | 8) // bc 4,2,+8 (bne, skip the li r3,1 below)
	e.li(r3, 1)
	e.stw(r15, disp(dst, 8), r3)
	e.stwImm(r15, disp(dst, 12), 0)
}

func (e *emitter) callOutOfLine(addr, cellAddr uint32) {
	e.mr(r3, r14)
	e.movImm32(r4, cellAddr)
	e.movImm32(r11, addr)
	e.mtlr(r11)
	e.u32((19 << 26) | (20 << 21) | (1 << 1) | 1) // bclrl 20,0 (blrl)
}

func (e *emitter) CallHelper(id abi.HelperID, cellAddr uintptr) {
	e.callOutOfLine(uint32(e.b.HelperAddr(id)), uint32(cellAddr))
	e.u32((11 << 26) | (uint32(r3) << 16) | 0)
	e.u32((16 << 26) | (12 << 21) | (2 << 16) | 0) // bc 12,2,<trampoline> (beq, placeholder)
	site := e.buf.Len() - 4
	e.patchB(site, e.b.TrampolineOffset())
}

func (e *emitter) Jump(targetLPC int) int {
	e.u32(18 << 26)
	return e.buf.Len() - 4
}

func (e *emitter) branchOnTruth(src int, wantTrue bool) int {
	cellAddr := e.b.NewCell(0, src, 0, "", nil)
	e.callOutOfLine(uint32(e.b.HelperAddr(abi.HelperTruth)), uint32(cellAddr))
	e.u32((11 << 26) | (uint32(r3) << 16) | 0)
	if wantTrue {
		e.u32((16 << 26) | (4 << 21) | (2 << 16) | 0)
	} else {
		e.u32((16 << 26) | (12 << 21) | (2 << 16) | 0)
	}
	return e.buf.Len() - 4
}

func (e *emitter) BranchIfTrue(src int, targetLPC int) int  { return e.branchOnTruth(src, true) }
func (e *emitter) BranchIfFalse(src int, targetLPC int) int { return e.branchOnTruth(src, false) }

func (e *emitter) BranchIfFlags(targetLPC int) int {
	e.u32((16 << 26) | (12 << 21) | (2 << 16) | 0)
	return e.buf.Len() - 4
}

func (e *emitter) patchB(site, target int) {
	d := int32(target - site)
	word := e.wordAt(site)
	op := word >> 26
	if op == 18 {
		word = (word &^ 0x03FFFFFC) | (uint32(d) & 0x03FFFFFC)
	} else {
		word = (word &^ 0xFFFC) | (uint32(d) & 0xFFFC)
	}
	e.buf.PatchU32BE(site, word)
}

func (e *emitter) wordAt(off int) uint32 {
	b := e.buf.Bytes()
	return uint32(b[off+3]) | uint32(b[off+2])<<8 | uint32(b[off+1])<<16 | uint32(b[off])<<24
}

func (e *emitter) Patch(site, nativeTarget int, kind abi.PatchKind) error {
	if site < 0 || site+4 > e.buf.Len() {
		return fmt.Errorf("jit/ppc32: patch site %d out of range", site)
	}
	e.patchB(site, nativeTarget)
	return nil
}

func (e *emitter) Bytes() []byte { return e.buf.Bytes() }
