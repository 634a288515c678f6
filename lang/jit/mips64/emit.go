// Package mips64 is the JIT back end's MIPS64 (n64 ABI, little-endian)
// emitter. Every branch in the MIPS encoding has a delay
// slot; this emitter always fills it with an explicit NOP rather than
// trying to hoist a useful instruction into it, trading a little density
// for a one-for-one correspondence with the generic opcode visitor in
// jit.Compile.
//
// Register assignment (n64 ABI names in parens):
//
//	$16 (s0)  reserved: the Environment pointer (first arg, $4/a0)
//	$17 (s1)  reserved: the active Frame's tmpvar base (second arg, $5/a1)
//	$1  (at), $8 (t0), $9 (t1), $10 (t2)  scratch
//	$2  (v0)  helper call return value
//	$31 (ra)  link register
package mips64

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
	rZero  = 0
	rAT    = 1
	rV0    = 2
	rA0    = 4
	rA1    = 5
	rT0    = 8
	rT1    = 9
	rT2    = 10
	rS0    = 16 // env
	rS1    = 17 // frame
	rRA    = 31
)

type emitter struct {
	b   abi.Builder
	buf asmutil.Buf

	skipTrampolineSite int
}

// New returns an Emitter that compiles LIR bytecode to MIPS64 machine
// code.
func New(b abi.Builder) abi.Emitter { return &emitter{b: b} }

func disp(idx int, field int32) int32 { return int32(idx)*valueSize + field }

func (e *emitter) u32(v uint32) { e.buf.U32LE(v) }
func (e *emitter) nop()         { e.u32(0) }

func rtype(op, rs, rt, rd, shamt, funct uint32) uint32 {
	return (op << 26) | (rs << 21) | (rt << 16) | (rd << 11) | (shamt << 6) | funct
}
func itype(op, rs, rt uint32, imm16 uint32) uint32 {
	return (op << 26) | (rs << 21) | (rt << 16) | (imm16 & 0xFFFF)
}

func (e *emitter) movImm64(rt int, v uint64) {
	e.u32(itype(0xF, 0, uint32(rt), uint32(v>>48)))              // lui rt, v[48:64]
	e.u32(itype(0xD, uint32(rt), uint32(rt), uint32(v>>32)))     // ori rt, rt, v[32:48]
	e.u32(rtype(0, 0, uint32(rt), uint32(rt), 16, 0x3C))          // dsll rt, rt, 16
	e.u32(itype(0xD, uint32(rt), uint32(rt), uint32(v>>16)))     // ori rt, rt, v[16:32]
	e.u32(rtype(0, 0, uint32(rt), uint32(rt), 16, 0x3C))          // dsll rt, rt, 16
	e.u32(itype(0xD, uint32(rt), uint32(rt), uint32(v)))          // ori rt, rt, v[0:16]
}

// addrOf materializes base+off into rd via a scratch 64-bit immediate add.
func (e *emitter) addrOf(rd, base int, off int32) {
	e.movImm64(rd, uint64(uint32(off)))
	e.u32(rtype(0, uint32(base), uint32(rd), uint32(rd), 0, 0x2D)) // daddu rd, base, rd
}

func (e *emitter) loadW(rt, base int, off int32) {
	e.addrOf(rAT, base, off)
	e.u32(itype(0x23, uint32(rAT), uint32(rt), 0)) // lw rt, 0(rAT)
}

func (e *emitter) storeW(base int, off int32, rt int) {
	e.addrOf(rAT, base, off)
	e.u32(itype(0x2B, uint32(rAT), uint32(rt), 0)) // sw rt, 0(rAT)
}

// storeWImm stages imm in t2, leaving t0/t1 as CompareEqualInt loaded
// them for StoreFlagsAsInt and BranchIfFlags.
func (e *emitter) storeWImm(base int, off int32, imm uint32) {
	e.movImm64(rT2, uint64(imm))
	e.storeW(base, off, rT2)
}

func (e *emitter) move(rd, rs int) {
	e.u32(rtype(0, uint32(rs), rZero, uint32(rd), 0, 0x25)) // or rd, rs, zero
}

func (e *emitter) Prologue() {
	e.move(rS0, rA0)
	e.move(rS1, rA1)
	e.u32(itype(0x4, rZero, rZero, 0)) // beq zero,zero,<past trampoline> (placeholder)
	e.skipTrampolineSite = e.buf.Len() - 4
	e.nop() // delay slot
}

func (e *emitter) Trampoline() int {
	off := e.buf.Len()
	e.u32(itype(0x9, rZero, rV0, 0)) // addiu v0, zero, 0 (false)
	e.u32(rtype(0, rRA, 0, 0, 0, 0x08)) // jr ra
	e.nop()
	resume := e.buf.Len()
	e.patchBranch(e.skipTrampolineSite, resume)
	return off
}

func (e *emitter) Epilogue() {
	e.u32(itype(0x9, rZero, rV0, 1)) // addiu v0, zero, 1 (true)
	e.u32(rtype(0, rRA, 0, 0, 0, 0x08))
	e.nop()
}

func (e *emitter) Label(lpc int) { e.b.MarkLabel(lpc, e.buf.Len()) }

func (e *emitter) ConstInt(dst int, v int32) {
	e.storeWImm(rS1, disp(dst, 0), 0)
	e.storeWImm(rS1, disp(dst, 8), uint32(v))
	e.storeWImm(rS1, disp(dst, 12), 0)
}

func (e *emitter) ConstFloat(dst int, bits uint32) {
	e.storeWImm(rS1, disp(dst, 0), 1)
	e.storeWImm(rS1, disp(dst, 8), bits)
	e.storeWImm(rS1, disp(dst, 12), 0)
}

func (e *emitter) Move(dst, src int) {
	for _, off := range []int32{0, 4, 8, 12} {
		e.loadW(rT0, rS1, disp(src, off))
		e.storeW(rS1, disp(dst, off), rT0)
	}
}

func (e *emitter) Inc(dst int) {
	e.loadW(rT0, rS1, disp(dst, 0))
	e.u32(itype(0x5, rT0, rZero, 0)) // bne t0, zero, <trampoline> (placeholder)
	site := e.buf.Len() - 4
	e.nop()
	e.patchBranch(site, e.b.TrampolineOffset())

	e.loadW(rT0, rS1, disp(dst, 8))
	e.u32(itype(0x9, rT0, rT0, 1)) // addiu t0, t0, 1
	e.storeW(rS1, disp(dst, 8), rT0)
}

func (e *emitter) CompareEqualInt(a, b int) {
	e.loadW(rT0, rS1, disp(a, payloadOffset))
	e.loadW(rT1, rS1, disp(b, payloadOffset))
}

func (e *emitter) StoreFlagsAsInt(dst int) {
	e.storeWImm(rS1, disp(dst, 0), 0)
	// v0 = (t0 == t1) ? 1 : 0 via subtraction and set-less-than-unsigned
	// against 1.
	e.u32(rtype(0, uint32(rT0), uint32(rT1), uint32(rV0), 0, 0x22)) // sub v0, t0, t1
	e.u32(itype(0xB, uint32(rV0), uint32(rV0), 1))                  // sltiu v0, v0, 1 (1 iff diff==0)
	e.storeW(rS1, disp(dst, 8), rV0)
	e.storeWImm(rS1, disp(dst, 12), 0)
}

func (e *emitter) callOutOfLine(addr, cellAddr uint64) {
	e.move(rA0, rS0)
	e.movImm64(rA1, cellAddr)
	e.movImm64(rT0, addr)
	e.u32(rtype(0, uint32(rT0), 0, rRA, 0, 0x09)) // jalr ra, t0
	e.nop()
}

func (e *emitter) CallHelper(id abi.HelperID, cellAddr uintptr) {
	e.callOutOfLine(uint64(e.b.HelperAddr(id)), uint64(cellAddr))
	e.u32(itype(0x4, rV0, rZero, 0)) // beq v0, zero, <trampoline> (placeholder)
	site := e.buf.Len() - 4
	e.nop()
	e.patchBranch(site, e.b.TrampolineOffset())
}

func (e *emitter) Jump(targetLPC int) int {
	e.u32(itype(0x4, rZero, rZero, 0)) // beq zero,zero,target
	site := e.buf.Len() - 4
	e.nop()
	return site
}

func (e *emitter) branchOnTruth(src int, wantTrue bool) int {
	cellAddr := e.b.NewCell(0, src, 0, "", nil)
	e.callOutOfLine(uint64(e.b.HelperAddr(abi.HelperTruth)), uint64(cellAddr))
	var site int
	if wantTrue {
		e.u32(itype(0x5, rV0, rZero, 0)) // bne v0, zero, target
	} else {
		e.u32(itype(0x4, rV0, rZero, 0)) // beq v0, zero, target
	}
	site = e.buf.Len() - 4
	e.nop()
	return site
}

func (e *emitter) BranchIfTrue(src int, targetLPC int) int  { return e.branchOnTruth(src, true) }
func (e *emitter) BranchIfFalse(src int, targetLPC int) int { return e.branchOnTruth(src, false) }

func (e *emitter) BranchIfFlags(targetLPC int) int {
	// Relies on the preceding CompareEqualInt having left t0/t1 loaded;
	// re-derive the equality test here since MIPS has no flags register.
	e.u32(rtype(0, uint32(rT0), uint32(rT1), uint32(rV0), 0, 0x22)) // sub v0, t0, t1
	e.u32(itype(0x4, rV0, rZero, 0))                                // beq v0, zero, target
	site := e.buf.Len() - 4
	e.nop()
	return site
}

func (e *emitter) patchBranch(site, target int) {
	d := int32(target-(site+4)) / 4
	word := (e.wordAt(site) &^ 0xFFFF) | (uint32(d) & 0xFFFF)
	e.buf.PatchU32LE(site, word)
}

func (e *emitter) wordAt(off int) uint32 {
	b := e.buf.Bytes()
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func (e *emitter) Patch(site, nativeTarget int, kind abi.PatchKind) error {
	if site < 0 || site+4 > e.buf.Len() {
		return fmt.Errorf("jit/mips64: patch site %d out of range", site)
	}
	e.patchBranch(site, nativeTarget)
	return nil
}

func (e *emitter) Bytes() []byte { return e.buf.Bytes() }
