// Package jit implements the multi-architecture JIT back end: for each
// supported ISA, a single-pass emitter walks the same bytecode stream
// the interpreter dispatches and writes machine words into a pre-mapped,
// per-process code region, inlining trivial opcodes and emitting
// out-of-line calls to shared helper routines for the rest.
//
// A shared per-function context records the LIR-PC→native-offset table
// and the branch-patch table, and a per-ISA Emitter (one implementation
// per jit/<arch> subpackage) supplies the helper-call, branch, constant
// and move primitives. Compile drives one generic visitor over the
// bytecode against whichever Emitter matches the host (see host_*.go);
// only the emitter implementation varies across the seven ISAs.
package jit

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/tamakomori/linguine/lang/lir"
	"github.com/tamakomori/linguine/lang/value"
)

// JITCodeMax is the fixed size of the process-wide code region.
const JITCodeMax = 16 << 20

// Compile translates fn's bytecode into native machine code for the host
// architecture and, on success, installs the result as fn.Native. It
// returns an error — and leaves fn permanently interpreter-only — on any
//  failure modes: region exhaustion, too many patches or
// PC entries, or malformed bytecode. Compile never panics on malformed
// input; the bytecode is re-validated the same way the interpreter does.
func Compile(env *value.Environment, fn *value.FuncObj) error {
	if !hostSupported {
		return errors.New("jit: no native emitter for this architecture, interpreter-only")
	}
	if fn.IsForeign() || !fn.IsBytecode() {
		return errors.New("jit: function has no bytecode to compile")
	}
	if fn.TmpVarSize < 0 || fn.TmpVarSize > maxTmpVars {
		return errors.Errorf("jit: tmpvar_size %d exceeds %d", fn.TmpVarSize, maxTmpVars)
	}

	fb := newFuncBuilder(fn)
	em := newHostEmitter(fb)

	em.Prologue()
	trampolineOff := em.Trampoline()
	fb.trampoline = trampolineOff

	d := lir.Decoder{Code: fn.Bytecode}
	for d.PC < len(fn.Bytecode) {
		lpc := d.PC
		em.Label(lpc)

		op, ok := d.Op()
		if !ok {
			return errors.Errorf("jit: broken bytecode at pc %d", lpc)
		}

		if err := emitOne(fb, em, &d, op); err != nil {
			return errors.Wrapf(err, "jit: %s at pc %d", op, lpc)
		}
		if len(fb.patches) > maxPatches {
			return errors.New("jit: too many branch patches")
		}
		if fb.lpcToNative.Count() > maxPCEntries {
			return errors.New("jit: too many PC table entries")
		}
	}
	em.Label(len(fn.Bytecode)) // function-end sentinel, for a trailing JMP target

	em.Epilogue()

	if err := fb.resolvePatches(em); err != nil {
		return err
	}
	fb.keepCellsAlive()

	code := em.Bytes()
	base, err := globalRegion.Commit(code)
	if err != nil {
		return errors.Wrap(err, "jit: code region")
	}

	native, err := makeNativeEntry(base, len(code))
	if err != nil {
		return errors.Wrap(err, "jit: building native entry")
	}
	fn.Native = native
	return nil
}

// maxTmpVars, maxPatches and maxPCEntries are declared resource limits
// of one compiled function, kept even though the backing stores (Go
// slices, a swiss.Map) are growable.
const (
	maxTmpVars   = 1024
	maxPatches   = 2048
	maxPCEntries = 2048
)

// emitOne dispatches a single decoded opcode to the emitter, mirroring
// the interpreter's switch in lang/interp/interp.go one-for-one so that
// the two backends can never silently diverge on which opcodes exist.
func emitOne(fb *FuncBuilder, em Emitter, d *lir.Decoder, op lir.Op) error {
	u16 := func() (int, error) {
		v, ok := d.U16()
		if !ok {
			return 0, errors.New("truncated operand")
		}
		return v, nil
	}
	i32 := func() (int32, error) {
		v, ok := d.I32()
		if !ok {
			return 0, errors.New("truncated operand")
		}
		return v, nil
	}
	u32 := func() (uint32, error) {
		v, ok := d.U32()
		if !ok {
			return 0, errors.New("truncated operand")
		}
		return v, nil
	}
	u8 := func() (int, error) {
		v, ok := d.U8()
		if !ok {
			return 0, errors.New("truncated operand")
		}
		return v, nil
	}
	cstr := func() (string, error) {
		v, ok := d.CStr()
		if !ok {
			return "", errors.New("truncated operand")
		}
		return v, nil
	}
	jumpTarget := func() (int, error) {
		v, ok := d.U32()
		if !ok {
			return 0, errors.New("truncated jump target")
		}
		return int(v), nil
	}

	switch op {
	case lir.NOP:
		// no-op: nothing to emit

	case lir.LINEINFO:
		if _, err := i32(); err != nil {
			return err
		}
		// Debug-only; carries no runtime effect in the JIT.

	case lir.ICONST:
		dst, err := u16()
		if err != nil {
			return err
		}
		imm, err := i32()
		if err != nil {
			return err
		}
		em.ConstInt(dst, imm)

	case lir.FCONST:
		dst, err := u16()
		if err != nil {
			return err
		}
		bits, err := u32()
		if err != nil {
			return err
		}
		em.ConstFloat(dst, bits)

	case lir.SCONST:
		dst, err := u16()
		if err != nil {
			return err
		}
		s, err := cstr()
		if err != nil {
			return err
		}
		em.CallHelper(HelperSConst, fb.NewCell(dst, 0, 0, s, nil))

	case lir.ACONST:
		dst, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperAConst, fb.NewCell(dst, 0, 0, "", nil))

	case lir.DCONST:
		dst, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperDConst, fb.NewCell(dst, 0, 0, "", nil))

	case lir.ASSIGN:
		dst, err := u16()
		if err != nil {
			return err
		}
		src, err := u16()
		if err != nil {
			return err
		}
		em.Move(dst, src)

	case lir.INC:
		dst, err := u16()
		if err != nil {
			return err
		}
		em.Inc(dst)

	case lir.ADD, lir.SUB, lir.MUL, lir.DIV, lir.MOD, lir.AND, lir.OR, lir.XOR,
		lir.LT, lir.LTE, lir.GT, lir.GTE, lir.EQ, lir.NEQ, lir.EQI:
		dst, err := u16()
		if err != nil {
			return err
		}
		lhs, err := u16()
		if err != nil {
			return err
		}
		rhs, err := u16()
		if err != nil {
			return err
		}
		if op == lir.EQI {
			// Leave the CPU's condition codes set from this compare so a
			// following JMPIFEQ can branch on them directly instead of
			// reloading the 0/1 result.
			em.CompareEqualInt(lhs, rhs)
			em.StoreFlagsAsInt(dst)
		} else {
			em.CallHelper(binaryHelper[op], fb.NewCell(dst, lhs, rhs, "", nil))
		}

	case lir.NEG:
		dst, err := u16()
		if err != nil {
			return err
		}
		src, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperNeg, fb.NewCell(dst, src, 0, "", nil))

	case lir.LOADARRAY:
		dst, err := u16()
		if err != nil {
			return err
		}
		c, err := u16()
		if err != nil {
			return err
		}
		k, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperLoadArray, fb.NewCell(dst, c, k, "", nil))

	case lir.STOREARRAY:
		c, err := u16()
		if err != nil {
			return err
		}
		k, err := u16()
		if err != nil {
			return err
		}
		s, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperStoreArray, fb.NewCell(c, k, s, "", nil))

	case lir.LEN:
		dst, err := u16()
		if err != nil {
			return err
		}
		src, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperLen, fb.NewCell(dst, src, 0, "", nil))

	case lir.GETDICTKEYBYINDEX, lir.GETDICTVALBYINDEX:
		dst, err := u16()
		if err != nil {
			return err
		}
		dictT, err := u16()
		if err != nil {
			return err
		}
		idx, err := u16()
		if err != nil {
			return err
		}
		id := HelperDictKeyByIndex
		if op == lir.GETDICTVALBYINDEX {
			id = HelperDictValByIndex
		}
		em.CallHelper(id, fb.NewCell(dst, dictT, idx, "", nil))

	case lir.LOADDOT:
		dst, err := u16()
		if err != nil {
			return err
		}
		obj, err := u16()
		if err != nil {
			return err
		}
		name, err := cstr()
		if err != nil {
			return err
		}
		em.CallHelper(HelperLoadDot, fb.NewCell(dst, obj, 0, name, nil))

	case lir.STOREDOT:
		obj, err := u16()
		if err != nil {
			return err
		}
		name, err := cstr()
		if err != nil {
			return err
		}
		src, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperStoreDot, fb.NewCell(obj, 0, src, name, nil))

	case lir.LOADSYMBOL:
		dst, err := u16()
		if err != nil {
			return err
		}
		name, err := cstr()
		if err != nil {
			return err
		}
		em.CallHelper(HelperLoadSymbol, fb.NewCell(dst, 0, 0, name, nil))

	case lir.STORESYMBOL:
		name, err := cstr()
		if err != nil {
			return err
		}
		src, err := u16()
		if err != nil {
			return err
		}
		em.CallHelper(HelperStoreSymbol, fb.NewCell(0, src, 0, name, nil))

	case lir.CALL:
		dst, err := u16()
		if err != nil {
			return err
		}
		fnReg, err := u16()
		if err != nil {
			return err
		}
		argc, err := u8()
		if err != nil {
			return err
		}
		args := make([]int, argc)
		for i := range args {
			args[i], err = u16()
			if err != nil {
				return err
			}
		}
		em.CallHelper(HelperCall, fb.NewCell(dst, fnReg, 0, "", args))

	case lir.THISCALL:
		dst, err := u16()
		if err != nil {
			return err
		}
		objReg, err := u16()
		if err != nil {
			return err
		}
		name, err := cstr()
		if err != nil {
			return err
		}
		argc, err := u8()
		if err != nil {
			return err
		}
		args := make([]int, argc)
		for i := range args {
			args[i], err = u16()
			if err != nil {
				return err
			}
		}
		em.CallHelper(HelperThisCall, fb.NewCell(dst, objReg, 0, name, args))

	case lir.JMP:
		target, err := jumpTarget()
		if err != nil {
			return err
		}
		fb.addPatch(em.Jump(target), target, PatchUnconditional)

	case lir.JMPIFTRUE:
		src, err := u16()
		if err != nil {
			return err
		}
		target, err := jumpTarget()
		if err != nil {
			return err
		}
		fb.addPatch(em.BranchIfTrue(src, target), target, PatchIfTrue)

	case lir.JMPIFFALSE:
		src, err := u16()
		if err != nil {
			return err
		}
		target, err := jumpTarget()
		if err != nil {
			return err
		}
		fb.addPatch(em.BranchIfFalse(src, target), target, PatchIfFalse)

	case lir.JMPIFEQ:
		src, err := u16()
		if err != nil {
			return err
		}
		target, err := jumpTarget()
		if err != nil {
			return err
		}
		// hint honored: branches on the flags EQI left set, not on a
		// reloaded 0/1 temporary.
		_ = src
		fb.addPatch(em.BranchIfFlags(target), target, PatchFlags)

	default:
		return errors.Errorf("unknown opcode %d", op)
	}
	return nil
}

// binaryHelper maps a generic binary opcode to the HelperID CallHelper
// should invoke for it (everything except EQI, which is handled inline
// above).
var binaryHelper = map[lir.Op]HelperID{
	lir.ADD: HelperAdd, lir.SUB: HelperSub, lir.MUL: HelperMul, lir.DIV: HelperDiv,
	lir.MOD: HelperMod, lir.AND: HelperAnd, lir.OR: HelperOr, lir.XOR: HelperXor,
	lir.LT: HelperLt, lir.LTE: HelperLte, lir.GT: HelperGt, lir.GTE: HelperGte,
	lir.EQ: HelperEq, lir.NEQ: HelperNeq,
}

// FuncBuilder is the per-function compilation context threaded through a
// single Compile call. The region cursor itself lives in the
// process-wide CodeRegion;
// FuncBuilder only accumulates this one function's local code buffer
// before it is committed.
type FuncBuilder struct {
	fn *value.FuncObj

	// lpcToNative maps a bytecode program counter to the native offset (in
	// this function's local buffer) where code for that PC begins. Backed
	// by a swiss map: one lookup per branch patch, over a table that grows
	// with function size.
	lpcToNative *swiss.Map[int, int]

	patches    []Patch
	trampoline int // native offset of the exception-handler trampoline

	// cells holds every CallArgsCell built by NewCell for this function,
	// pinned alive by keepCellsAlive once Compile succeeds (see
	// helpers.go).
	cells []*CallArgsCell
}

// Patch is one pending branch-patch table entry: the (site, target LPC,
// kind) triple recorded when a branch is emitted before its target.
type Patch struct {
	Site      int // native offset of the branch instruction to rewrite
	TargetLPC int // bytecode PC the branch targets
	Kind      PatchKind
}

func newFuncBuilder(fn *value.FuncObj) *FuncBuilder {
	return &FuncBuilder{
		fn:          fn,
		lpcToNative: swiss.NewMap[int, int](16),
	}
}

func (fb *FuncBuilder) addPatch(site, target int, kind PatchKind) {
	fb.patches = append(fb.patches, Patch{Site: site, TargetLPC: target, Kind: kind})
}

func (fb *FuncBuilder) resolvePatches(em Emitter) error {
	for _, p := range fb.patches {
		nativeTarget, ok := fb.lpcToNative.Get(p.TargetLPC)
		if !ok || nativeTarget < 0 {
			return errors.Errorf("jit: unresolved branch target lpc %d", p.TargetLPC)
		}
		if err := em.Patch(p.Site, nativeTarget, p.Kind); err != nil {
			return errors.Wrap(err, "jit: patch")
		}
	}
	return nil
}

// TrampolineOffset returns the native offset of this function's
// exception-handler trampoline, recorded once by
// Prologue/Trampoline and reused by every out-of-line helper call site
// that needs to branch to it on failure.
func (fb *FuncBuilder) TrampolineOffset() int { return fb.trampoline }

// MarkLabel records that lpc begins at the emitter's current native
// cursor offset. Per-ISA emitters call this once per bytecode
// instruction, immediately before emitting its code, via the
// FuncBuilder passed to newHostEmitter.
func (fb *FuncBuilder) MarkLabel(lpc, nativeOffset int) {
	fb.lpcToNative.Put(lpc, nativeOffset)
}
