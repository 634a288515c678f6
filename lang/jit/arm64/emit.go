// Package arm64 is the JIT back end's AArch64 emitter. It follows the
// same shape jit/x86_64 establishes (a
// reserved environment register, a reserved frame register, helper calls
// marshalled through a single resolved address and one operand-cell
// pointer) translated to AAPCS64 registers and AArch64's fixed 32-bit
// instruction encoding.
//
// Register assignment for the whole compiled function:
//
//	X19  reserved: the Environment pointer (first AAPCS64 argument, X0)
//	X20  reserved: the active Frame's tmpvar base (second argument, X1)
//	X9   scratch: address computation and load/store staging
//	X0   scratch: helper call argument 1 / return value
//	X1   scratch: helper call argument 2
//
// X19/X20 are callee-saved under AAPCS64, so they survive the CallHelper
// calls this emitter makes without reloading, the same property
// jit/x86_64 relies on for RBX/R12.
package arm64

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
	rEnv   = 19
	rFrame = 20
	rAddr  = 9
	rAddr2 = 10
	r0     = 0
	r1     = 1
	rLR    = 30
	rSP    = 31
	rZR    = 31
)

type emitter struct {
	b   abi.Builder
	buf asmutil.Buf

	skipTrampolineSite int
}

// New returns an Emitter that compiles LIR bytecode to AArch64 machine
// code, driven against b for labels, the trampoline offset, helper
// addresses and call-argument cells.
func New(b abi.Builder) abi.Emitter { return &emitter{b: b} }

func disp(idx int, field int32) int32 { return int32(idx)*valueSize + field }

func (e *emitter) u32(v uint32) { e.buf.U32LE(v) }

// movImm64 materializes an arbitrary 64-bit immediate into rd via up to
// four MOVZ/MOVK instructions, one per 16-bit lane. JIT-embedded
// addresses (helper entry points, CallArgsCell pointers) need the full
// width; this is the portable way to load one without a literal pool.
func (e *emitter) movImm64(rd int, v uint64) {
	e.u32(0xD2800000 | (uint32(v&0xFFFF) << 5) | uint32(rd)) // movz rd, #v[0:16]
	for shift := uint(1); shift < 4; shift++ {
		lane := uint16(v >> (shift * 16))
		if lane == 0 {
			continue
		}
		e.u32(0xF2800000 | (uint32(shift) << 21) | (uint32(lane) << 5) | uint32(rd))
	}
}

// addrOf materializes the byte address base+off into rd: ADD if off fits
// the unsigned 12-bit immediate, else a staged MOVZ/MOVK + ADD (register).
// Bytecode temporary displacements can exceed 4095 bytes for large
// functions, so the
// general path is always available, not just a fallback.
func (e *emitter) addrOf(rd, base int, off int32) {
	if off >= 0 && off <= 4095 {
		e.u32(0x91000000 | (uint32(off) << 10) | (uint32(base) << 5) | uint32(rd))
		return
	}
	e.movImm64(rd, uint64(uint32(off)))
	// ADD Xd, Xbase, Xrd (shifted register, no shift)
	e.u32(0x8B000000 | (uint32(rd) << 16) | (uint32(base) << 5) | uint32(rd))
}

func (e *emitter) loadW(rt, base int, off int32) {
	e.addrOf(rAddr2, base, off)
	e.u32(0xB9400000 | (uint32(rAddr2) << 5) | uint32(rt)) // ldr wt, [raddr2]
}

func (e *emitter) storeW(base int, off int32, rt int) {
	e.addrOf(rAddr2, base, off)
	e.u32(0xB9000000 | (uint32(rAddr2) << 5) | uint32(rt)) // str wt, [raddr2]
}

func (e *emitter) storeWImm(base int, off int32, imm uint32) {
	e.movImm64(rAddr, uint64(imm))
	e.storeW(base, off, rAddr)
}

func (e *emitter) movReg(rd, rn int) {
	// MOV Xd, Xn (alias of ORR Xd, XZR, Xn)
	e.u32(0xAA0003E0 | (uint32(rn) << 16) | uint32(rd))
}

func (e *emitter) Prologue() {
	// A 32-byte frame holds x29/x30 and x19/x20; only x19/x20/x30 must
	// survive calls we make ourselves.
	e.u32(0xA9BE7BFD) // stp x29, x30, [sp, #-32]!
	e.u32(0xA90153F3) // stp x19, x20, [sp, #16]
	e.movReg(rEnv, r0)
	e.movReg(rFrame, r1)
	e.u32(0x14000000) // b <past trampoline> (placeholder imm26)
	e.skipTrampolineSite = e.buf.Len() - 4
}

func (e *emitter) Trampoline() int {
	off := e.buf.Len()
	e.u32(0x52800000) // movz w0, #0 (false)
	e.epilogueTail()
	resume := e.buf.Len()
	e.patchB(e.skipTrampolineSite, resume)
	return off
}

func (e *emitter) epilogueTail() {
	e.u32(0xA94153F3) // ldp x19, x20, [sp, #16]
	e.u32(0xA8C27BFD) // ldp x29, x30, [sp], #32
	e.u32(0xD65F03C0) // ret
}

func (e *emitter) Epilogue() {
	e.u32(0x52800020) // movz w0, #1 (true)
	e.epilogueTail()
}

func (e *emitter) Label(lpc int) { e.b.MarkLabel(lpc, e.buf.Len()) }

func (e *emitter) ConstInt(dst int, v int32) {
	e.storeWImm(rFrame, disp(dst, 0), 0) // KindInt
	e.storeWImm(rFrame, disp(dst, 8), uint32(v))
	e.storeWImm(rFrame, disp(dst, 12), 0)
}

func (e *emitter) ConstFloat(dst int, bits uint32) {
	e.storeWImm(rFrame, disp(dst, 0), 1) // KindFloat
	e.storeWImm(rFrame, disp(dst, 8), bits)
	e.storeWImm(rFrame, disp(dst, 12), 0)
}

func (e *emitter) Move(dst, src int) {
	for _, off := range []int32{0, 4, 8, 12} {
		e.loadW(rAddr, rFrame, disp(src, off))
		e.storeW(rFrame, disp(dst, off), rAddr)
	}
}

// Inc increments an Int tmpvar in place, branching to the trampoline on a
// type mismatch, mirroring the interpreter's INC case.
func (e *emitter) Inc(dst int) {
	e.loadW(rAddr, rFrame, disp(dst, 0))
	e.u32(0x7100001F | (uint32(rAddr) << 5)) // cmp wAddr, #0 (subs wzr, wAddr, #0)
	e.u32(0x54000001)                        // b.ne <trampoline> (placeholder)
	site := e.buf.Len() - 4
	e.patchCond(site, e.b.TrampolineOffset())

	e.loadW(rAddr, rFrame, disp(dst, 8))
	e.u32(0x11000400 | (uint32(rAddr) << 5) | uint32(rAddr)) // add wAddr, wAddr, #1
	e.storeW(rFrame, disp(dst, 8), rAddr)
}

func (e *emitter) CompareEqualInt(a, b int) {
	e.loadW(r0, rFrame, disp(a, payloadOffset))
	e.loadW(r1, rFrame, disp(b, payloadOffset))
	e.u32(0x6B01001F | (uint32(r1) << 16) | (uint32(r0) << 5)) // cmp w0, w1
}

func (e *emitter) StoreFlagsAsInt(dst int) {
	e.storeWImm(rFrame, disp(dst, 0), 0)
	e.u32(0x1A9F17E0) // cset w0, eq
	e.storeW(rFrame, disp(dst, 8), r0)
	e.storeWImm(rFrame, disp(dst, 12), 0)
}

// callOutOfLine loads env into X0, cellAddr into X1 and branches with
// link to the helper at addr, the uniform two-pointer-argument shape
// every out-of-line helper call shares (CallHelper and the truth-testing
// branch opcodes alike).
func (e *emitter) callOutOfLine(addr, cellAddr uint64) {
	e.movReg(r0, rEnv)
	e.movImm64(r1, cellAddr)
	e.movImm64(rAddr, addr)
	e.u32(0xD63F0000 | (uint32(rAddr) << 5)) // blr rAddr
}

func (e *emitter) CallHelper(id abi.HelperID, cellAddr uintptr) {
	e.callOutOfLine(uint64(e.b.HelperAddr(id)), uint64(cellAddr))
	e.u32(0x7100001F) // cmp w0, #0
	e.u32(0x54000000) // b.eq <trampoline>
	site := e.buf.Len() - 4
	e.patchCond(site, e.b.TrampolineOffset())
}

func (e *emitter) Jump(targetLPC int) int {
	e.u32(0x14000000)
	return e.buf.Len() - 4
}

func (e *emitter) branchOnTruth(src int, wantTrue bool) int {
	cellAddr := e.b.NewCell(0, src, 0, "", nil)
	e.callOutOfLine(uint64(e.b.HelperAddr(abi.HelperTruth)), uint64(cellAddr))
	e.u32(0x7100001F) // cmp w0, #0
	if wantTrue {
		e.u32(0x54000001) // b.ne target
	} else {
		e.u32(0x54000000) // b.eq target
	}
	return e.buf.Len() - 4
}

func (e *emitter) BranchIfTrue(src int, targetLPC int) int  { return e.branchOnTruth(src, true) }
func (e *emitter) BranchIfFalse(src int, targetLPC int) int { return e.branchOnTruth(src, false) }

func (e *emitter) BranchIfFlags(targetLPC int) int {
	e.u32(0x54000000) // b.eq target, relying on the preceding CompareEqualInt
	return e.buf.Len() - 4
}

// patchB rewrites an unconditional B at site with the 26-bit word offset
// to target.
func (e *emitter) patchB(site, target int) {
	d := int32(target-site) / 4
	word := (e.wordAt(site) &^ 0x03FFFFFF) | (uint32(d) & 0x03FFFFFF)
	e.buf.PatchU32LE(site, word)
}

// patchCond rewrites a conditional branch (B.cond, 19-bit imm field) at
// site, preserving its condition-code bits.
func (e *emitter) patchCond(site, target int) {
	d := int32(target-site) / 4
	word := (e.wordAt(site) &^ (0x7FFFF << 5)) | ((uint32(d) & 0x7FFFF) << 5)
	e.buf.PatchU32LE(site, word)
}

func (e *emitter) wordAt(off int) uint32 {
	b := e.buf.Bytes()
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func (e *emitter) Patch(site, nativeTarget int, kind abi.PatchKind) error {
	if site < 0 || site+4 > e.buf.Len() {
		return fmt.Errorf("jit/arm64: patch site %d out of range", site)
	}
	switch kind {
	case abi.PatchUnconditional:
		e.patchB(site, nativeTarget)
	default:
		e.patchCond(site, nativeTarget)
	}
	return nil
}

func (e *emitter) Bytes() []byte { return e.buf.Bytes() }
