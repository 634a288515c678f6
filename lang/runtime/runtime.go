// Package runtime implements the host-facing API surface: creating an
// environment, registering functions from source or bytecode or as
// foreign callbacks, calling into the language by name or by function
// object, and the value/array/dict/global accessors and explicit GC
// triggers a host embedding this language needs. It is built directly on
// package value's Environment/Frame rather than redefining them.
package runtime

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/tamakomori/linguine/lang/gc"
	"github.com/tamakomori/linguine/lang/interp"
	"github.com/tamakomori/linguine/lang/jit"
	"github.com/tamakomori/linguine/lang/value"
)

// Host is one embedding's runtime handle: the Environment plus the
// interpreter's dispatch hooks. Each Host corresponds to one Environment;
// shared Environments across goroutines are not supported.
type Host struct {
	Env *value.Environment

	// Debug holds the optional pre-instruction, post-instruction and
	// on-error callbacks the interpreter calls. Go has no
	// compile-time-optional hooks, so absence is modeled as a nil field;
	// interp checks each field where it would call it, once per
	// instruction.
	Debug interp.Hooks
}

// NewHost creates an empty, ready-to-use runtime handle. It also
// installs itself as the dispatcher JIT-compiled CALL/THISCALL sites go
// through; that registration is process-wide and last-host-wins, which
// is consistent with the single-threaded, one-environment-at-a-time
// model.
func NewHost() *Host {
	h := &Host{Env: value.NewEnvironment()}
	jit.SetCaller(h)
	return h
}

// RegisterForeign registers a host-supplied function under name.
// Re-registering an existing name replaces it, matching STORESYMBOL's
// last-write-wins semantics for globals.
func (h *Host) RegisterForeign(name string, params []string, fn value.ForeignFunc) {
	h.Env.Functions[name] = value.NewForeignFunc(name, params, fn)
}

// RegisterBytecode registers a precompiled function. Use package
// bytecode's Read to produce the parameters from a bytecode file first.
func (h *Host) RegisterBytecode(name, file string, params []string, code []byte, tmpVarSize int) *value.FuncObj {
	obj := value.NewBytecodeFunc(name, file, params, code, tmpVarSize)
	h.Env.Functions[name] = obj
	return obj
}

// Call invokes the function registered under name, following the
// foreign → native → bytecode dispatch priority. It returns the single
// return value from the callee's slot 0, or an error built from the
// environment's error state if the call failed.
func (h *Host) Call(ctx context.Context, name string, args ...value.Value) (value.Value, error) {
	fn, ok := h.Env.Functions[name]
	if !ok {
		return value.Value{}, errors.Errorf("linguine: unknown function %q", name)
	}
	return h.CallFunc(ctx, fn, value.Value{}, args...)
}

// CallFunc invokes fn directly. this is bound into a local named "this"
// only for THISCALL-originated invocations; pass the zero Value for an
// ordinary call.
func (h *Host) CallFunc(ctx context.Context, fn *value.FuncObj, this value.Value, args ...value.Value) (value.Value, error) {
	select {
	case <-ctx.Done():
		return value.Value{}, ctx.Err()
	default:
	}

	if !h.checkArity(fn, len(args)) {
		return value.Value{}, errors.Errorf("linguine: %s", h.Env.ErrorMessage())
	}
	fr := newCallFrame(fn, args)
	if this.Object() != nil || this.IsNumber() || this.IsFunc() {
		fr.Locals.Set("this", this)
	}
	result, ok := h.invoke(ctx, fn, fr)
	if !ok {
		return value.Value{}, errors.Errorf("linguine: %s:%d: %s", h.Env.ErrorFile(), h.Env.ErrorLine(), h.Env.ErrorMessage())
	}
	return result, nil
}

func (h *Host) invoke(ctx context.Context, fn *value.FuncObj, fr *value.Frame) (value.Value, bool) {
	h.Env.PushFrame(fr)
	defer func() {
		h.Env.PopFrame()
		gc.ShallowGC(h.Env, fr)
	}()
	return h.dispatch(ctx, fn, fr)
}

// Invoke implements interp.Caller: it is how CALL/THISCALL bytecode
// invokes a nested function, pushing and tearing down its own frame the
// same way the top-level Call/CallFunc entry points do.
func (h *Host) Invoke(ctx context.Context, fn *value.FuncObj, this value.Value, args []value.Value) (value.Value, bool) {
	if !h.checkArity(fn, len(args)) {
		return value.Value{}, false
	}
	fr := newCallFrame(fn, args)
	if this.Object() != nil || this.IsNumber() || this.IsFunc() {
		fr.Locals.Set("this", this)
	}
	return h.invoke(ctx, fn, fr)
}

// checkArity validates the argument count against a foreign function's
// declared parameter list before dispatch, so mismatches fail at the
// call boundary, not inside the callee. Bytecode functions are not
// checked: missing arguments read as zero values and extras land in
// scratch slots, the same permissive behavior the interpreter's own
// CALL has.
func (h *Host) checkArity(fn *value.FuncObj, argc int) bool {
	if fn.IsForeign() && argc != len(fn.Params) {
		h.Env.SetError(fn.File, 0, "wrong number of arguments to %s(): %d given, %d expected",
			fn.Name, argc, len(fn.Params))
		return false
	}
	return true
}

// newCallFrame builds the callee's frame and places the arguments in
// slots 0..argc-1. The register file is grown past the declared
// TmpVarSize when needed so that a foreign function (whose TmpVarSize
// is zero) still has slots for its arguments and its slot-0 return
// value.
func newCallFrame(fn *value.FuncObj, args []value.Value) *value.Frame {
	fr := value.NewFrame(fn)
	if need := len(args) + 1; len(fr.Tmpvar) < need {
		fr.Tmpvar = append(fr.Tmpvar, make([]value.Value, need-len(fr.Tmpvar))...)
	}
	for i, a := range args {
		fr.Tmpvar[i] = a
	}
	return fr
}

// dispatch implements the call priority: foreign pointer → native entry
// point (JIT) → bytecode interpreter.
func (h *Host) dispatch(ctx context.Context, fn *value.FuncObj, fr *value.Frame) (value.Value, bool) {
	switch {
	case fn.IsForeign():
		fc := &frameForeignContext{env: h.Env, fr: fr}
		if err := fn.Foreign(fc); err != nil {
			h.Env.SetError(fn.File, 0, "%s", err)
			return value.Value{}, false
		}
		return fr.Tmpvar[0], true
	case fn.IsCompiled():
		// The JIT prologue treats the second argument as a raw pointer to
		// the first Value in the register file, not as a pointer to Frame
		// itself (Frame.Tmpvar is a slice header, not an inline array) —
		// see value.NativeEntry's doc comment.
		if !fn.Native(unsafe.Pointer(h.Env), unsafe.Pointer(unsafe.SliceData(fr.Tmpvar))) {
			return value.Value{}, false
		}
		return fr.Tmpvar[0], true
	default:
		ok := interp.Run(ctx, h.Env, fr, h.Debug, h)
		if !ok {
			return value.Value{}, false
		}
		return fr.Tmpvar[0], true
	}
}

// frameForeignContext adapts a Frame to the value.ForeignContext a
// ForeignFunc expects: arguments read from temporaries 0..argc, result
// written to slot 0.
type frameForeignContext struct {
	env *value.Environment
	fr  *value.Frame
}

func (c *frameForeignContext) Argc() int { return len(c.fr.Func.Params) }

func (c *frameForeignContext) Arg(i int) value.Value {
	if i < 0 || i >= len(c.fr.Tmpvar) {
		return value.Value{}
	}
	return c.fr.Tmpvar[i]
}

func (c *frameForeignContext) SetResult(v value.Value) {
	if len(c.fr.Tmpvar) == 0 {
		return
	}
	c.fr.Tmpvar[0] = v
}

// SetGlobal writes a global binding, promoting its value if it
// references a shallow heap object.
func (h *Host) SetGlobal(name string, v value.Value) {
	h.Env.Globals.Set(name, v)
	gc.PromoteValue(h.Env, v)
}

// Global reads a global binding.
func (h *Host) Global(name string) (value.Value, bool) {
	return h.Env.Globals.Lookup(name)
}

// ShallowGC explicitly runs a shallow collection against the active
// frame, if any.
func (h *Host) ShallowGC() {
	if fr := h.Env.Top; fr != nil {
		gc.ShallowGC(h.Env, fr)
	}
}

// DeepGC explicitly runs a full mark-and-sweep collection.
func (h *Host) DeepGC() { gc.DeepGC(h.Env) }

// HeapUsage reports the environment's running heap-byte count.
func (h *Host) HeapUsage() int64 { return gc.HeapUsage(h.Env) }

// Error returns the environment's current error state formatted the way
// a host would print it.
func (h *Host) Error() error {
	if h.Env.ErrorMessage() == "" {
		return nil
	}
	return fmt.Errorf("%s:%d: %s", h.Env.ErrorFile(), h.Env.ErrorLine(), h.Env.ErrorMessage())
}
