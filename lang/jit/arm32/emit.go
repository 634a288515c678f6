// Package arm32 is the JIT back end's 32-bit ARM (AAPCS, ARMv7+)
// emitter. It uses the MOVW/MOVT immediate-load pair rather than
// ARM's classic rotated-immediate encoding for simplicity — every
// constant this emitter loads (a helper address, a CallArgsCell pointer,
// a tmpvar displacement) is an arbitrary 32-bit value, not one of the few
// shapes the rotated encoding covers cheaply.
//
// Register assignment:
//
//	R4  reserved: the Environment pointer (first AAPCS argument, R0)
//	R5  reserved: the active Frame's tmpvar base (second argument, R1)
//	R2, R3, R12  scratch
//
// R4/R5/LR are callee-saved/preserved across the BLX calls this emitter
// makes to shared helpers, the same property jit/x86_64 relies on for
// RBX/R12.
package arm32

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
	rEnv   = 4
	rFrame = 5
	rAddr  = 2
	rAddr2 = 3
	r0     = 0
	r1     = 1
	rIP    = 12
	rLR    = 14
)

type emitter struct {
	b   abi.Builder
	buf asmutil.Buf

	skipTrampolineSite int
}

// New returns an Emitter that compiles LIR bytecode to 32-bit ARM machine
// code.
func New(b abi.Builder) abi.Emitter { return &emitter{b: b} }

func disp(idx int, field int32) int32 { return int32(idx)*valueSize + field }

func (e *emitter) u32(v uint32) { e.buf.U32LE(v) }

func (e *emitter) movImm32(rd int, v uint32) {
	e.u32(0xE3000000 | (uint32(v>>12&0xF) << 16) | (uint32(rd) << 12) | (v & 0xFFF)) // movw
	if v>>16 != 0 {
		hi := v >> 16
		e.u32(0xE3400000 | (uint32(hi>>12&0xF) << 16) | (uint32(rd) << 12) | (hi & 0xFFF)) // movt
	}
}

func (e *emitter) addImm(rd, rn int, v uint32) {
	e.movImm32(rAddr2, v)
	e.u32(0xE0800000 | (uint32(rn) << 16) | (uint32(rd) << 12) | uint32(rAddr2)) // add rd, rn, raddr2
}

func (e *emitter) loadW(rt, base int, off int32) {
	e.addImm(rAddr, base, uint32(off))
	e.u32(0xE5900000 | (uint32(rAddr) << 16) | (uint32(rt) << 12)) // ldr rt, [raddr]
}

func (e *emitter) storeW(base int, off int32, rt int) {
	e.addImm(rAddr, base, uint32(off))
	e.u32(0xE5800000 | (uint32(rAddr) << 16) | (uint32(rt) << 12)) // str rt, [raddr]
}

func (e *emitter) storeWImm(base int, off int32, imm uint32) {
	e.movImm32(rAddr2, imm)
	e.storeW(base, off, rAddr2)
}

func (e *emitter) movReg(rd, rn int) {
	e.u32(0xE1A00000 | (uint32(rd) << 12) | uint32(rn))
}

func (e *emitter) Prologue() {
	e.u32(0xE92D4030) // push {r4, r5, lr}
	e.movReg(rEnv, r0)
	e.movReg(rFrame, r1)
	e.u32(0xEA000000) // b <past trampoline> (placeholder imm24)
	e.skipTrampolineSite = e.buf.Len() - 4
}

func (e *emitter) Trampoline() int {
	off := e.buf.Len()
	e.movImm32(r0, 0) // false
	e.u32(0xE8BD8030) // pop {r4, r5, pc}
	resume := e.buf.Len()
	e.patchB(e.skipTrampolineSite, resume)
	return off
}

func (e *emitter) Epilogue() {
	e.movImm32(r0, 1) // true
	e.u32(0xE8BD8030)
}

func (e *emitter) Label(lpc int) { e.b.MarkLabel(lpc, e.buf.Len()) }

func (e *emitter) ConstInt(dst int, v int32) {
	e.storeWImm(rFrame, disp(dst, 0), 0)
	e.storeWImm(rFrame, disp(dst, 8), uint32(v))
	e.storeWImm(rFrame, disp(dst, 12), 0)
}

func (e *emitter) ConstFloat(dst int, bits uint32) {
	e.storeWImm(rFrame, disp(dst, 0), 1)
	e.storeWImm(rFrame, disp(dst, 8), bits)
	e.storeWImm(rFrame, disp(dst, 12), 0)
}

func (e *emitter) Move(dst, src int) {
	for _, off := range []int32{0, 4, 8, 12} {
		e.loadW(rAddr, rFrame, disp(src, off))
		e.storeW(rFrame, disp(dst, off), rAddr)
	}
}

func (e *emitter) Inc(dst int) {
	e.loadW(rAddr, rFrame, disp(dst, 0))
	e.u32(0xE3500000 | (uint32(rAddr) << 16)) // cmp raddr, #0
	e.u32(0x1A000000)                         // bne <trampoline> (placeholder)
	site := e.buf.Len() - 4
	e.patchB(site, e.b.TrampolineOffset())

	e.loadW(rAddr, rFrame, disp(dst, 8))
	e.u32(0xE2800001 | (uint32(rAddr) << 16) | (uint32(rAddr) << 12)) // add raddr, raddr, #1
	e.storeW(rFrame, disp(dst, 8), rAddr)
}

func (e *emitter) CompareEqualInt(a, b int) {
	e.loadW(r0, rFrame, disp(a, payloadOffset))
	e.loadW(r1, rFrame, disp(b, payloadOffset))
	e.u32(0xE1500000 | (uint32(r0) << 16) | uint32(r1)) // cmp r0, r1
}

func (e *emitter) StoreFlagsAsInt(dst int) {
	e.storeWImm(rFrame, disp(dst, 0), 0)
	e.u32(0x03A00001 | (uint32(r0) << 12)) // moveq r0, #1
	e.u32(0x13A00000 | (uint32(r0) << 12)) // movne r0, #0
	e.storeW(rFrame, disp(dst, 8), r0)
	e.storeWImm(rFrame, disp(dst, 12), 0)
}

func (e *emitter) callOutOfLine(addr, cellAddr uint32) {
	e.movReg(r0, rEnv)
	e.movImm32(r1, cellAddr)
	e.movImm32(rIP, addr)
	e.u32(0xE12FFF30 | uint32(rIP)) // blx rip
}

func (e *emitter) CallHelper(id abi.HelperID, cellAddr uintptr) {
	e.callOutOfLine(uint32(e.b.HelperAddr(id)), uint32(cellAddr))
	e.u32(0xE3500000 | (uint32(r0) << 16)) // cmp r0, #0
	e.u32(0x0A000000)                      // beq <trampoline>
	site := e.buf.Len() - 4
	e.patchB(site, e.b.TrampolineOffset())
}

func (e *emitter) Jump(targetLPC int) int {
	e.u32(0xEA000000)
	return e.buf.Len() - 4
}

func (e *emitter) branchOnTruth(src int, wantTrue bool) int {
	cellAddr := e.b.NewCell(0, src, 0, "", nil)
	e.callOutOfLine(uint32(e.b.HelperAddr(abi.HelperTruth)), uint32(cellAddr))
	e.u32(0xE3500000 | (uint32(r0) << 16)) // cmp r0, #0
	if wantTrue {
		e.u32(0x1A000000) // bne target
	} else {
		e.u32(0x0A000000) // beq target
	}
	return e.buf.Len() - 4
}

func (e *emitter) BranchIfTrue(src int, targetLPC int) int  { return e.branchOnTruth(src, true) }
func (e *emitter) BranchIfFalse(src int, targetLPC int) int { return e.branchOnTruth(src, false) }

func (e *emitter) BranchIfFlags(targetLPC int) int {
	e.u32(0x0A000000) // beq target, relying on the preceding CompareEqualInt
	return e.buf.Len() - 4
}

func (e *emitter) patchB(site, target int) {
	d := int32(target-site-8) / 4
	word := (e.wordAt(site) &^ 0x00FFFFFF) | (uint32(d) & 0x00FFFFFF)
	e.buf.PatchU32LE(site, word)
}

func (e *emitter) wordAt(off int) uint32 {
	b := e.buf.Bytes()
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func (e *emitter) Patch(site, nativeTarget int, kind abi.PatchKind) error {
	if site < 0 || site+4 > e.buf.Len() {
		return fmt.Errorf("jit/arm32: patch site %d out of range", site)
	}
	e.patchB(site, nativeTarget)
	return nil
}

func (e *emitter) Bytes() []byte { return e.buf.Bytes() }
