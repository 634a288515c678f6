// Package interp implements the bytecode interpreter: a
// linear dispatch loop over LIR opcodes that bounds-checks every operand
// and jump target and calls generic helper functions for each
// arithmetic/container/symbol operation.
package interp

import (
	"context"
	"fmt"
	"math"

	"github.com/tamakomori/linguine/lang/gc"
	"github.com/tamakomori/linguine/lang/lir"
	"github.com/tamakomori/linguine/lang/value"
)

// Caller invokes a nested function call from CALL/THISCALL.
// package runtime's Host implements this; interp does not import runtime
// itself to avoid a cycle (runtime builds on top of interp.Run).
type Caller interface {
	Invoke(ctx context.Context, fn *value.FuncObj, this value.Value, args []value.Value) (value.Value, bool)
}

// Run executes fr.Func's bytecode against fr, dispatching CALL/THISCALL
// through caller. It returns false on any failure, having already
// recorded file/line/message into env.
func Run(ctx context.Context, env *value.Environment, fr *value.Frame, hooks Hooks, caller Caller) bool {
	if len(fr.Func.Bytecode) == 0 {
		return true // empty body returns tmpvar[0]'s zero value
	}

	d := lir.Decoder{Code: fr.Func.Bytecode}
	line := 0

	fail := func(format string, args ...interface{}) bool {
		env.SetError(fr.Func.File, line, format, args...)
		if hooks.OnError != nil {
			hooks.OnError(fr, d.PC, fmt.Errorf("%s", env.ErrorMessage()))
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			return fail("cancelled: %s", ctx.Err())
		default:
		}

		if hooks.Before != nil {
			hooks.Before(fr, d.PC)
		}

		op, ok := d.Op()
		if !ok {
			return fail("broken bytecode: pc %d out of range", d.PC)
		}

		switch op {
		case lir.NOP:
			// no-op

		case lir.LINEINFO:
			v, ok := d.I32()
			if !ok {
				return fail("broken bytecode: truncated LINEINFO")
			}
			line = int(v)

		case lir.ICONST:
			dst, okd := d.U16()
			v, okv := d.I32()
			if !okd || !okv || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated ICONST")
			}
			fr.Tmpvar[dst] = value.Int(v)

		case lir.FCONST:
			dst, okd := d.U16()
			bits, okv := d.U32()
			if !okd || !okv || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated FCONST")
			}
			fr.Tmpvar[dst] = value.Float(math.Float32frombits(bits))

		case lir.SCONST:
			dst, okd := d.U16()
			s, oks := d.CStr()
			if !okd || !oks || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated SCONST")
			}
			fr.Tmpvar[dst] = value.String(gc.AllocString(env, s))

		case lir.ACONST:
			dst, okd := d.U16()
			if !okd || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated ACONST")
			}
			fr.Tmpvar[dst] = value.Array(gc.AllocArray(env))

		case lir.DCONST:
			dst, okd := d.U16()
			if !okd || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated DCONST")
			}
			fr.Tmpvar[dst] = value.Dict(gc.AllocDict(env))

		case lir.ASSIGN:
			dst, okd := d.U16()
			src, oks := d.U16()
			if !okd || !oks || !validTmp(fr, dst) || !validTmp(fr, src) {
				return fail("broken bytecode: truncated ASSIGN")
			}
			fr.Tmpvar[dst] = value.Copy(fr.Tmpvar[src])

		case lir.ADD, lir.SUB, lir.MUL, lir.DIV, lir.MOD, lir.AND, lir.OR, lir.XOR,
			lir.LT, lir.LTE, lir.GT, lir.GTE, lir.EQ, lir.NEQ, lir.EQI:
			dst, okd := d.U16()
			lhs, okl := d.U16()
			rhs, okr := d.U16()
			if !okd || !okl || !okr || !validTmp(fr, dst) || !validTmp(fr, lhs) || !validTmp(fr, rhs) {
				return fail("broken bytecode: truncated binary op")
			}
			a, b := fr.Tmpvar[lhs], fr.Tmpvar[rhs]
			res, err := evalBinary(env, op, a, b)
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = res

		case lir.NEG:
			dst, okd := d.U16()
			src, oks := d.U16()
			if !okd || !oks || !validTmp(fr, dst) || !validTmp(fr, src) {
				return fail("broken bytecode: truncated NEG")
			}
			res, err := Neg(fr.Tmpvar[src])
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = res

		case lir.INC:
			dst, okd := d.U16()
			if !okd || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated INC")
			}
			if !fr.Tmpvar[dst].IsInt() {
				return fail("type mismatch in INC")
			}
			fr.Tmpvar[dst] = value.Int(fr.Tmpvar[dst].AsInt() + 1)

		case lir.LOADARRAY:
			dst, okd := d.U16()
			c, okc := d.U16()
			k, okk := d.U16()
			if !okd || !okc || !okk || !validTmp(fr, dst) || !validTmp(fr, c) || !validTmp(fr, k) {
				return fail("broken bytecode: truncated LOADARRAY")
			}
			v, err := LoadArray(fr.Tmpvar[c], fr.Tmpvar[k])
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = v

		case lir.STOREARRAY:
			c, okc := d.U16()
			k, okk := d.U16()
			s, oks := d.U16()
			if !okc || !okk || !oks || !validTmp(fr, c) || !validTmp(fr, k) || !validTmp(fr, s) {
				return fail("broken bytecode: truncated STOREARRAY")
			}
			if err := StoreArray(env, fr.Tmpvar[c], fr.Tmpvar[k], fr.Tmpvar[s]); err != nil {
				return fail("%s", err)
			}

		case lir.LEN:
			dst, okd := d.U16()
			src, oks := d.U16()
			if !okd || !oks || !validTmp(fr, dst) || !validTmp(fr, src) {
				return fail("broken bytecode: truncated LEN")
			}
			v, err := Len(fr.Tmpvar[src])
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = v

		case lir.GETDICTKEYBYINDEX:
			dst, okd := d.U16()
			dictT, okdi := d.U16()
			idx, oki := d.U16()
			if !okd || !okdi || !oki || !validTmp(fr, dst) || !validTmp(fr, dictT) || !validTmp(fr, idx) {
				return fail("broken bytecode: truncated GETDICTKEYBYINDEX")
			}
			if !fr.Tmpvar[idx].IsInt() {
				return fail("type mismatch in GETDICTKEYBYINDEX index")
			}
			v, err := DictKeyByIndex(env, fr.Tmpvar[dictT], fr.Tmpvar[idx].AsInt())
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = v

		case lir.GETDICTVALBYINDEX:
			dst, okd := d.U16()
			dictT, okdi := d.U16()
			idx, oki := d.U16()
			if !okd || !okdi || !oki || !validTmp(fr, dst) || !validTmp(fr, dictT) || !validTmp(fr, idx) {
				return fail("broken bytecode: truncated GETDICTVALBYINDEX")
			}
			if !fr.Tmpvar[idx].IsInt() {
				return fail("type mismatch in GETDICTVALBYINDEX index")
			}
			v, err := DictValByIndex(fr.Tmpvar[dictT], fr.Tmpvar[idx].AsInt())
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = v

		case lir.LOADDOT:
			dst, okd := d.U16()
			obj, oko := d.U16()
			name, okn := d.CStr()
			if !okd || !oko || !okn || !validTmp(fr, dst) || !validTmp(fr, obj) {
				return fail("broken bytecode: truncated LOADDOT")
			}
			v, err := LoadArray(fr.Tmpvar[obj], value.String(gc.AllocString(env, name)))
			if err != nil {
				return fail("%s", err)
			}
			fr.Tmpvar[dst] = v

		case lir.STOREDOT:
			obj, oko := d.U16()
			name, okn := d.CStr()
			src, oks := d.U16()
			if !oko || !okn || !oks || !validTmp(fr, obj) || !validTmp(fr, src) {
				return fail("broken bytecode: truncated STOREDOT")
			}
			if err := StoreArray(env, fr.Tmpvar[obj], value.String(gc.AllocString(env, name)), fr.Tmpvar[src]); err != nil {
				return fail("%s", err)
			}

		case lir.LOADSYMBOL:
			dst, okd := d.U16()
			name, okn := d.CStr()
			if !okd || !okn || !validTmp(fr, dst) {
				return fail("broken bytecode: truncated LOADSYMBOL")
			}
			v, found := fr.Locals.Lookup(name)
			if !found {
				v, found = env.Globals.Lookup(name)
			}
			if !found {
				// Registered functions resolve as symbols too, so a call
				// by name needs no separate global binding.
				if fnObj, ok := env.Functions[name]; ok {
					v, found = value.Func(fnObj), true
				}
			}
			if !found {
				return fail("missing symbol %q", name)
			}
			fr.Tmpvar[dst] = v

		case lir.STORESYMBOL:
			name, okn := d.CStr()
			src, oks := d.U16()
			if !okn || !oks || !validTmp(fr, src) {
				return fail("broken bytecode: truncated STORESYMBOL")
			}
			v := fr.Tmpvar[src]
			switch {
			case fr.Locals.Find(name) != nil:
				fr.Locals.Set(name, v)
			case env.Globals.Find(name) != nil:
				env.Globals.Set(name, v)
				gc.PromoteValue(env, v)
			default:
				// First write to an unknown name creates a local.
				fr.Locals.Set(name, v)
			}

		case lir.CALL:
			dst, okd := d.U16()
			fnReg, okf := d.U16()
			argc, oka := d.U8()
			if !okd || !okf || !oka || !validTmp(fr, dst) || !validTmp(fr, fnReg) {
				return fail("broken bytecode: truncated CALL")
			}
			args := make([]value.Value, argc)
			ok := true
			for i := range args {
				var reg int
				reg, ok = d.U16()
				if !ok || !validTmp(fr, reg) {
					return fail("broken bytecode: truncated CALL argument")
				}
				args[i] = fr.Tmpvar[reg]
			}
			callee := fr.Tmpvar[fnReg]
			if !callee.IsFunc() {
				return fail("Not a function")
			}
			result, ok := caller.Invoke(ctx, callee.AsFunc(), value.Value{}, args)
			if !ok {
				return fail("%s", env.ErrorMessage())
			}
			fr.Tmpvar[dst] = result

		case lir.THISCALL:
			dst, okd := d.U16()
			objReg, oko := d.U16()
			name, okn := d.CStr()
			argc, oka := d.U8()
			if !okd || !oko || !okn || !oka || !validTmp(fr, dst) || !validTmp(fr, objReg) {
				return fail("broken bytecode: truncated THISCALL")
			}
			args := make([]value.Value, argc)
			ok := true
			for i := range args {
				var reg int
				reg, ok = d.U16()
				if !ok || !validTmp(fr, reg) {
					return fail("broken bytecode: truncated THISCALL argument")
				}
				args[i] = fr.Tmpvar[reg]
			}
			this := fr.Tmpvar[objReg]
			fnVal, err := LoadArray(this, value.String(gc.AllocString(env, name)))
			if err != nil {
				return fail("%s", err)
			}
			if !fnVal.IsFunc() {
				return fail("Not a function")
			}
			result, ok := caller.Invoke(ctx, fnVal.AsFunc(), this, args)
			if !ok {
				return fail("%s", env.ErrorMessage())
			}
			fr.Tmpvar[dst] = result

		case lir.JMP:
			target, ok := d.Jump()
			if !ok {
				return fail("broken bytecode: bad JMP target")
			}
			d.PC = target

		case lir.JMPIFTRUE:
			src, oks := d.U16()
			if !oks || !validTmp(fr, src) {
				return fail("broken bytecode: truncated JMPIFTRUE")
			}
			target, ok := d.Jump()
			if !ok {
				return fail("broken bytecode: bad JMPIFTRUE target")
			}
			if fr.Tmpvar[src].Truth() {
				d.PC = target
			}

		case lir.JMPIFFALSE:
			src, oks := d.U16()
			if !oks || !validTmp(fr, src) {
				return fail("broken bytecode: truncated JMPIFFALSE")
			}
			target, ok := d.Jump()
			if !ok {
				return fail("broken bytecode: bad JMPIFFALSE target")
			}
			if !fr.Tmpvar[src].Truth() {
				d.PC = target
			}

		case lir.JMPIFEQ:
			src, oks := d.U16()
			if !oks || !validTmp(fr, src) {
				return fail("broken bytecode: truncated JMPIFEQ")
			}
			target, ok := d.Jump()
			if !ok {
				return fail("broken bytecode: bad JMPIFEQ target")
			}
			if fr.Tmpvar[src].Truth() {
				d.PC = target
			}

		default:
			return fail("broken bytecode: unknown opcode %d", op)
		}

		if hooks.After != nil {
			hooks.After(fr, d.PC)
		}

		if d.PC >= len(d.Code) {
			return true
		}
	}
}

func validTmp(fr *value.Frame, i int) bool { return i >= 0 && i < len(fr.Tmpvar) }

func evalBinary(env *value.Environment, op lir.Op, a, b value.Value) (value.Value, error) {
	switch op {
	case lir.ADD:
		return Add(env, a, b)
	case lir.SUB:
		return Sub(a, b)
	case lir.MUL:
		return Mul(a, b)
	case lir.DIV:
		return Div(a, b)
	case lir.MOD:
		return Mod(a, b)
	case lir.AND:
		return And(a, b)
	case lir.OR:
		return Or(a, b)
	case lir.XOR:
		return Xor(a, b)
	case lir.LT:
		return Lt(a, b)
	case lir.LTE:
		return Lte(a, b)
	case lir.GT:
		return Gt(a, b)
	case lir.GTE:
		return Gte(a, b)
	case lir.EQ, lir.EQI:
		return Eq(a, b), nil
	case lir.NEQ:
		return Neq(a, b), nil
	default:
		return value.Value{}, nil
	}
}
