package jit

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/tamakomori/linguine/lang/gc"
	"github.com/tamakomori/linguine/lang/interp"
	"github.com/tamakomori/linguine/lang/value"
)

// CallArgsCell (aliased from jit/abi in emitter.go) holds one
// out-of-line opcode's operands, resolved once at JIT-compile time since
// every operand of every LIR instruction is a compile-time constant (a
// temporary index or an inline string/argument list) — there is nothing
// left to marshal at call time. This generalizes CALL/THISCALL's
// embedded-argument-list technique (emit the operand list out of line,
// pass its address to the helper) to every helper call, not just
// CALL/THISCALL: a cell is built once per call site by
// FuncBuilder.NewCell, kept alive for the function's lifetime (see
// keepCellsAlive), and the native code only ever carries its address as
// an immediate operand. This keeps every per-ISA "call a helper"
// encoding down to loading two pointers (env, cell) and an indirect
// call — the one piece of the native call convention that must be
// right is small and uniform across all seven ISAs, instead of
// marshalling five-plus differently-typed arguments through each ISA's
// own register assignment.

// Shim is the fixed signature every out-of-line helper is
// adapted to. env is the same opaque Environment pointer a NativeEntry
// receives; the active frame is always env.Top (helpers never receive a
// separate frame pointer — env.Top is kept current by PushFrame/PopFrame
// around every call, including nested CALL/THISCALL dispatch through
// Caller.Invoke, exactly as it is for the interpreter). The return value
// is the interpreter's boolean-equivalent indicator: 1 success, 0
// failure, with the failure already recorded into env's error state.
type Shim func(env unsafe.Pointer, cell *CallArgsCell) int32

func envOf(env unsafe.Pointer) *value.Environment { return (*value.Environment)(env) }

func fail(e *value.Environment, fr *value.Frame, err error) int32 {
	file := ""
	if fr != nil && fr.Func != nil {
		file = fr.Func.File
	}
	e.SetError(file, 0, "%s", err)
	return 0
}

func errShim(format string, args ...interface{}) error { return fmt.Errorf(format, args...) }

var shimTable = [NumHelpers]Shim{
	HelperSConst: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e := envOf(env)
		e.Top.Tmpvar[c.Dst] = value.String(gc.AllocString(e, c.Name))
		return 1
	},
	HelperAConst: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e := envOf(env)
		e.Top.Tmpvar[c.Dst] = value.Array(gc.AllocArray(e))
		return 1
	},
	HelperDConst: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e := envOf(env)
		e.Top.Tmpvar[c.Dst] = value.Dict(gc.AllocDict(e))
		return 1
	},
	HelperAdd: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), (*value.Environment)(env).Top
		v, err := interp.Add(e, fr.Tmpvar[c.A], fr.Tmpvar[c.B])
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperSub: binOp(interp.Sub),
	HelperMul: binOp(interp.Mul),
	HelperDiv: binOp(interp.Div),
	HelperMod: binOp(interp.Mod),
	HelperAnd: binOp(interp.And),
	HelperOr:  binOp(interp.Or),
	HelperXor: binOp(interp.Xor),
	HelperLt:  binOp(interp.Lt),
	HelperLte: binOp(interp.Lte),
	HelperGt:  binOp(interp.Gt),
	HelperGte: binOp(interp.Gte),
	HelperEq: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		fr := envOf(env).Top
		fr.Tmpvar[c.Dst] = interp.Eq(fr.Tmpvar[c.A], fr.Tmpvar[c.B])
		return 1
	},
	HelperNeq: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		fr := envOf(env).Top
		fr.Tmpvar[c.Dst] = interp.Neq(fr.Tmpvar[c.A], fr.Tmpvar[c.B])
		return 1
	},
	HelperNeg: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v, err := interp.Neg(fr.Tmpvar[c.A])
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperLoadArray: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v, err := interp.LoadArray(fr.Tmpvar[c.A], fr.Tmpvar[c.B])
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperStoreArray: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		if err := interp.StoreArray(e, fr.Tmpvar[c.Dst], fr.Tmpvar[c.A], fr.Tmpvar[c.B]); err != nil {
			return fail(e, fr, err)
		}
		return 1
	},
	HelperLen: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v, err := interp.Len(fr.Tmpvar[c.A])
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperDictKeyByIndex: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		if !fr.Tmpvar[c.B].IsInt() {
			return fail(e, fr, errShim("type mismatch in GETDICTKEYBYINDEX index"))
		}
		v, err := interp.DictKeyByIndex(e, fr.Tmpvar[c.A], fr.Tmpvar[c.B].AsInt())
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperDictValByIndex: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		if !fr.Tmpvar[c.B].IsInt() {
			return fail(e, fr, errShim("type mismatch in GETDICTVALBYINDEX index"))
		}
		v, err := interp.DictValByIndex(fr.Tmpvar[c.A], fr.Tmpvar[c.B].AsInt())
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperLoadDot: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v, err := interp.LoadArray(fr.Tmpvar[c.A], value.String(gc.AllocString(e, c.Name)))
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperStoreDot: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		if err := interp.StoreArray(e, fr.Tmpvar[c.Dst], value.String(gc.AllocString(e, c.Name)), fr.Tmpvar[c.B]); err != nil {
			return fail(e, fr, err)
		}
		return 1
	},
	HelperLoadSymbol: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v, found := fr.Locals.Lookup(c.Name)
		if !found {
			v, found = e.Globals.Lookup(c.Name)
		}
		if !found {
			// Same registry fallback as the interpreter's LOADSYMBOL.
			if fnObj, ok := e.Functions[c.Name]; ok {
				v, found = value.Func(fnObj), true
			}
		}
		if !found {
			return fail(e, fr, errShim("missing symbol %q", c.Name))
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	},
	HelperStoreSymbol: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v := fr.Tmpvar[c.A]
		switch {
		case fr.Locals.Find(c.Name) != nil:
			fr.Locals.Set(c.Name, v)
		case e.Globals.Find(c.Name) != nil:
			e.Globals.Set(c.Name, v)
			gc.PromoteValue(e, v)
		default:
			fr.Locals.Set(c.Name, v)
		}
		return 1
	},
	HelperCall: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		callee := fr.Tmpvar[c.A]
		if !callee.IsFunc() {
			return fail(e, fr, errShim("Not a function"))
		}
		return dispatchCall(e, fr, c, callee.AsFunc(), value.Value{})
	},
	HelperTruth: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		if envOf(env).Top.Tmpvar[c.A].Truth() {
			return 1
		}
		return 0
	},
	HelperThisCall: func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		this := fr.Tmpvar[c.A]
		fnVal, err := interp.LoadArray(this, value.String(gc.AllocString(e, c.Name)))
		if err != nil {
			return fail(e, fr, err)
		}
		if !fnVal.IsFunc() {
			return fail(e, fr, errShim("Not a function"))
		}
		return dispatchCall(e, fr, c, fnVal.AsFunc(), this)
	},
}

func binOp(f func(a, b value.Value) (value.Value, error)) Shim {
	return func(env unsafe.Pointer, c *CallArgsCell) int32 {
		e, fr := envOf(env), envOf(env).Top
		v, err := f(fr.Tmpvar[c.A], fr.Tmpvar[c.B])
		if err != nil {
			return fail(e, fr, err)
		}
		fr.Tmpvar[c.Dst] = v
		return 1
	}
}

// activeCaller dispatches CALL/THISCALL from JIT-compiled code the same
// way interp.Run does: through the host's Invoke. jit
// cannot import package runtime (runtime depends on jit to trigger
// compilation), so runtime registers itself here instead, once, from
// NewHost.
var activeCaller interp.Caller

// SetCaller installs the Caller JIT-compiled CALL/THISCALL dispatch uses.
func SetCaller(c interp.Caller) { activeCaller = c }

func dispatchCall(e *value.Environment, fr *value.Frame, c *CallArgsCell, fn *value.FuncObj, this value.Value) int32 {
	if activeCaller == nil {
		return fail(e, fr, errShim("jit: no caller installed"))
	}
	argv := make([]value.Value, len(c.Args))
	for i, a := range c.Args {
		argv[i] = fr.Tmpvar[a]
	}
	result, ok := activeCaller.Invoke(context.Background(), fn, this, argv)
	if !ok {
		return 0
	}
	fr.Tmpvar[c.Dst] = result
	return 1
}

// helperAddrs resolves each Shim's entry point exactly once per process.
// reflect.Value.Pointer is the only portable way in Go to turn a func
// value into a callable address without cgo. It carries an ABI caveat:
// the emitted native call must match Go's own calling convention for
// this exact signature, not the platform C ABI.
var (
	helperAddrsOnce sync.Once
	helperAddrs     [NumHelpers]uintptr
)

func resolveHelperAddrs() {
	for id, fn := range shimTable {
		if fn == nil {
			continue
		}
		helperAddrs[id] = reflect.ValueOf(fn).Pointer()
	}
}

// HelperAddr returns the resolved entry address for id, for an Emitter's
// CallHelper to embed as the target of a native call.
func (fb *FuncBuilder) HelperAddr(id HelperID) uintptr {
	helperAddrsOnce.Do(resolveHelperAddrs)
	return helperAddrs[id]
}

// liveCells keeps every CallArgsCell built for a compiled function
// reachable from the Go heap for as long as the process runs: the
// emitted native code only holds each cell's raw address, which is
// invisible to the Go garbage collector, so something else must keep the
// object alive. This is deliberately permanent
// "Memory policy" — the code region itself is never reclaimed either.
var liveCells sync.Map // *value.FuncObj -> []*CallArgsCell

// NewCell allocates and records a call site's operand cell, returning its
// address for the emitter to embed as an immediate.
func (fb *FuncBuilder) NewCell(dst, a, b int, name string, args []int) uintptr {
	cell := &CallArgsCell{Dst: dst, A: a, B: b, Name: name, Args: args}
	fb.cells = append(fb.cells, cell)
	return uintptr(unsafe.Pointer(cell))
}

// keepCellsAlive is called once Compile succeeds, pinning this function's
// cells for its FuncObj's lifetime.
func (fb *FuncBuilder) keepCellsAlive() {
	if len(fb.cells) == 0 {
		return
	}
	liveCells.Store(fb.fn, fb.cells)
}
