package lir

import (
	"encoding/binary"
	"fmt"

	"github.com/tamakomori/linguine/lang/token"
)

// Sentinel written in place of an unresolved forward-jump target; any
// 4-byte pattern works, this one reads obviously as garbage if a patch
// is ever missed.
const unresolvedTarget = 0xFFFFFFFF

// reloc records one forward-jump site awaiting a target block's address.
type reloc struct {
	site int    // byte offset of the 4-byte operand within code
	to   BlockID
}

// BlockID names an LIR target address before it is known — one per HIR
// block, resolved to a byte offset once that block is emitted.
type BlockID int

// Builder assembles one function's bytecode stream incrementally,
// acquiring and releasing temporary slots with a high-water stack
// allocator and deferring forward jump targets to a relocation table.
type Builder struct {
	Name   string
	File   string
	Params []string

	code []byte

	tmpHigh int // high-water mark, becomes TmpVarSize
	tmpTop  int // current stack-allocator depth

	blockAddr map[BlockID]int
	relocs    []reloc

	optimize bool // when true, LINEINFO is suppressed

	err *Error
}

// Error is a compile-time LIR failure.
type Error struct {
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message) }

// maxTemporaries caps one function's register file at 1024; unlike the
// function/param/array-literal caps, this one is not encoded in any fixed
// operand width (Tmpvar is 2 bytes, plenty for 1024), so it is kept purely
// as a safety backstop against runaway recursion in a buggy HIR, not
// because the format requires it.
const maxTemporaries = 1024

// maxArgs is the cap on CALL/THISCALL argument count, encoded in the
// opcode's Imm8 argc operand.
const maxArgs = 255

// NewBuilder starts a builder for one function.
func NewBuilder(name, file string, params []string, optimize bool) *Builder {
	return &Builder{
		Name:      name,
		File:      file,
		Params:    params,
		blockAddr: make(map[BlockID]int),
		optimize:  optimize,
	}
}

func (b *Builder) fail(line int, format string, args ...interface{}) {
	if b.err == nil {
		b.err = &Error{File: b.File, Line: line, Message: fmt.Sprintf(format, args...)}
	}
}

// Err returns the first failure recorded during building, if any.
func (b *Builder) Err() error {
	if b.err == nil {
		return nil
	}
	return b.err
}

// AllocTmp acquires one fresh temporary slot.
func (b *Builder) AllocTmp() int {
	t := b.tmpTop
	b.tmpTop++
	if b.tmpTop > b.tmpHigh {
		b.tmpHigh = b.tmpTop
	}
	if b.tmpTop > maxTemporaries {
		b.fail(0, "too many temporaries (limit %d)", maxTemporaries)
	}
	return t
}

// FreeTmp releases the most recently acquired temporaries, in reverse
// order of acquisition. Callers pass how many to release.
func (b *Builder) FreeTmp(n int) {
	b.tmpTop -= n
	if b.tmpTop < 0 {
		b.tmpTop = 0
	}
}

// TmpVarSize returns the high-water mark reached so far, the value that
// becomes the assembled function's declared register-file size.
func (b *Builder) TmpVarSize() int { return b.tmpHigh }

// Mark records the current byte offset as the address of block id, to be
// used by any relocation already or later recorded against it.
func (b *Builder) Mark(id BlockID) {
	b.blockAddr[id] = len(b.code)
}

func (b *Builder) emit(op Op) { b.code = append(b.code, byte(op)) }

func (b *Builder) emitU16(v int) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	b.code = append(b.code, buf[:]...)
}

func (b *Builder) emitU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.code = append(b.code, buf[:]...)
}

func (b *Builder) emitI32(v int32) { b.emitU32(uint32(v)) }

func (b *Builder) emitU8(v int) { b.code = append(b.code, byte(v)) }

func (b *Builder) emitCStr(s string) {
	b.code = append(b.code, s...)
	b.code = append(b.code, 0)
}

// --- Constants ---

func (b *Builder) ICONST(dst int, v int32) {
	b.emit(ICONST)
	b.emitU16(dst)
	b.emitI32(v)
}

func (b *Builder) FCONST(dst int, bits uint32) {
	b.emit(FCONST)
	b.emitU16(dst)
	b.emitU32(bits)
}

func (b *Builder) SCONST(dst int, s string) {
	b.emit(SCONST)
	b.emitU16(dst)
	b.emitCStr(s)
}

func (b *Builder) ACONST(dst int) {
	b.emit(ACONST)
	b.emitU16(dst)
}

func (b *Builder) DCONST(dst int) {
	b.emit(DCONST)
	b.emitU16(dst)
}

func (b *Builder) ASSIGN(dst, src int) {
	b.emit(ASSIGN)
	b.emitU16(dst)
	b.emitU16(src)
}

// --- Arithmetic / comparison (uniform dst,lhs,rhs shape) ---

func (b *Builder) binary(op Op, dst, lhs, rhs int) {
	b.emit(op)
	b.emitU16(dst)
	b.emitU16(lhs)
	b.emitU16(rhs)
}

func (b *Builder) ADD(dst, lhs, rhs int) { b.binary(ADD, dst, lhs, rhs) }
func (b *Builder) SUB(dst, lhs, rhs int) { b.binary(SUB, dst, lhs, rhs) }
func (b *Builder) MUL(dst, lhs, rhs int) { b.binary(MUL, dst, lhs, rhs) }
func (b *Builder) DIV(dst, lhs, rhs int) { b.binary(DIV, dst, lhs, rhs) }
func (b *Builder) MOD(dst, lhs, rhs int) { b.binary(MOD, dst, lhs, rhs) }
func (b *Builder) AND(dst, lhs, rhs int) { b.binary(AND, dst, lhs, rhs) }
func (b *Builder) OR(dst, lhs, rhs int)  { b.binary(OR, dst, lhs, rhs) }
func (b *Builder) XOR(dst, lhs, rhs int) { b.binary(XOR, dst, lhs, rhs) }
func (b *Builder) LT(dst, lhs, rhs int)  { b.binary(LT, dst, lhs, rhs) }
func (b *Builder) LTE(dst, lhs, rhs int) { b.binary(LTE, dst, lhs, rhs) }
func (b *Builder) GT(dst, lhs, rhs int)  { b.binary(GT, dst, lhs, rhs) }
func (b *Builder) GTE(dst, lhs, rhs int) { b.binary(GTE, dst, lhs, rhs) }
func (b *Builder) EQ(dst, lhs, rhs int)  { b.binary(EQ, dst, lhs, rhs) }
func (b *Builder) NEQ(dst, lhs, rhs int) { b.binary(NEQ, dst, lhs, rhs) }
func (b *Builder) EQI(dst, lhs, rhs int) { b.binary(EQI, dst, lhs, rhs) }

func (b *Builder) NEG(dst, src int) {
	b.emit(NEG)
	b.emitU16(dst)
	b.emitU16(src)
}

func (b *Builder) INC(dst int) {
	b.emit(INC)
	b.emitU16(dst)
}

// --- Containers ---

func (b *Builder) LOADARRAY(dst, container, key int) {
	b.emit(LOADARRAY)
	b.emitU16(dst)
	b.emitU16(container)
	b.emitU16(key)
}

func (b *Builder) STOREARRAY(container, key, src int) {
	b.emit(STOREARRAY)
	b.emitU16(container)
	b.emitU16(key)
	b.emitU16(src)
}

func (b *Builder) LEN(dst, container int) {
	b.emit(LEN)
	b.emitU16(dst)
	b.emitU16(container)
}

func (b *Builder) GETDICTKEYBYINDEX(dst, dict, index int) {
	b.emit(GETDICTKEYBYINDEX)
	b.emitU16(dst)
	b.emitU16(dict)
	b.emitU16(index)
}

func (b *Builder) GETDICTVALBYINDEX(dst, dict, index int) {
	b.emit(GETDICTVALBYINDEX)
	b.emitU16(dst)
	b.emitU16(dict)
	b.emitU16(index)
}

func (b *Builder) LOADDOT(dst, obj int, name string) {
	b.emit(LOADDOT)
	b.emitU16(dst)
	b.emitU16(obj)
	b.emitCStr(name)
}

func (b *Builder) STOREDOT(obj int, name string, src int) {
	b.emit(STOREDOT)
	b.emitU16(obj)
	b.emitCStr(name)
	b.emitU16(src)
}

// --- Symbols ---

func (b *Builder) LOADSYMBOL(dst int, name string) {
	b.emit(LOADSYMBOL)
	b.emitU16(dst)
	b.emitCStr(name)
}

func (b *Builder) STORESYMBOL(name string, src int) {
	b.emit(STORESYMBOL)
	b.emitCStr(name)
	b.emitU16(src)
}

// --- Calls ---

func (b *Builder) CALL(dst, fn int, args []int) {
	if len(args) > maxArgs {
		b.fail(0, "too many call arguments (limit %d)", maxArgs)
		return
	}
	b.emit(CALL)
	b.emitU16(dst)
	b.emitU16(fn)
	b.emitU8(len(args))
	for _, a := range args {
		b.emitU16(a)
	}
}

func (b *Builder) THISCALL(dst, obj int, name string, args []int) {
	if len(args) > maxArgs {
		b.fail(0, "too many call arguments (limit %d)", maxArgs)
		return
	}
	b.emit(THISCALL)
	b.emitU16(dst)
	b.emitU16(obj)
	b.emitCStr(name)
	b.emitU8(len(args))
	for _, a := range args {
		b.emitU16(a)
	}
}

// --- Control flow ---

// jump emits op followed by a 4-byte target. If id's address is already
// known (a backward jump, e.g. a loop header), the real offset is written
// immediately; otherwise the sentinel is written and a relocation is
// queued for resolution once id's block is emitted.
func (b *Builder) jump(op Op, id BlockID) {
	b.emit(op)
	site := len(b.code)
	if addr, ok := b.blockAddr[id]; ok {
		b.emitU32(uint32(addr))
		return
	}
	b.emitU32(unresolvedTarget)
	b.relocs = append(b.relocs, reloc{site: site, to: id})
}

func (b *Builder) JMP(id BlockID) { b.jump(JMP, id) }

func (b *Builder) JMPIFTRUE(src int, id BlockID) {
	b.emit(JMPIFTRUE)
	b.emitU16(src)
	site := len(b.code)
	b.patchOrSentinel(site, id)
}

func (b *Builder) JMPIFFALSE(src int, id BlockID) {
	b.emit(JMPIFFALSE)
	b.emitU16(src)
	site := len(b.code)
	b.patchOrSentinel(site, id)
}

func (b *Builder) JMPIFEQ(src int, id BlockID) {
	b.emit(JMPIFEQ)
	b.emitU16(src)
	site := len(b.code)
	b.patchOrSentinel(site, id)
}

func (b *Builder) patchOrSentinel(site int, id BlockID) {
	if addr, ok := b.blockAddr[id]; ok {
		b.emitU32(uint32(addr))
		return
	}
	b.emitU32(unresolvedTarget)
	b.relocs = append(b.relocs, reloc{site: site, to: id})
}

// LINEINFO emits a line marker, suppressed entirely when the builder was
// constructed with optimize=true.
func (b *Builder) LINEINFO(pos token.Pos) {
	if b.optimize {
		return
	}
	b.emit(LINEINFO)
	b.emitI32(int32(pos.Line))
}

// Finish resolves every outstanding relocation against the recorded block
// addresses and returns the assembled bytecode and temporary-slot count.
// It fails if any relocation's block was never marked (a builder bug, not
// a user-visible HIR error).
func (b *Builder) Finish() ([]byte, int, error) {
	if b.err != nil {
		return nil, 0, b.err
	}
	for _, r := range b.relocs {
		addr, ok := b.blockAddr[r.to]
		if !ok {
			return nil, 0, fmt.Errorf("lir: unresolved relocation to block %d", r.to)
		}
		binary.BigEndian.PutUint32(b.code[r.site:r.site+4], uint32(addr))
	}
	return b.code, b.tmpHigh, nil
}
