package interp

import (
	"github.com/pkg/errors"

	"github.com/tamakomori/linguine/lang/gc"
	"github.com/tamakomori/linguine/lang/value"
)

// These helpers implement each arithmetic/container/symbol opcode
// generically over value kinds. The interpreter and the JIT's
// out-of-line-call opcodes tail-call the same functions: the JIT
// emitters call back into these exact Go functions rather than
// duplicating the logic in assembly.

// numeric promotes a pair of Int/Float values to a common representation:
// both ints stay ints, any float makes both floats.
func numeric(a, b value.Value) (af, bf float64, bothInt bool, ok bool) {
	if !a.IsNumber() || !b.IsNumber() {
		return 0, 0, false, false
	}
	if a.IsInt() && b.IsInt() {
		return float64(a.AsInt()), float64(b.AsInt()), true, true
	}
	av := float64(a.AsInt())
	if a.IsFloat() {
		av = float64(a.AsFloat())
	}
	bv := float64(b.AsInt())
	if b.IsFloat() {
		bv = float64(b.AsFloat())
	}
	return av, bv, false, true
}

func wrapNumeric(f float64, bothInt bool) value.Value {
	if bothInt {
		return value.Int(int32(f))
	}
	return value.Float(float32(f))
}

// Add implements ADD: numeric addition with int/float promotion, or
// string concatenation when both operands are strings.
func Add(env *value.Environment, a, b value.Value) (value.Value, error) {
	if a.IsString() && b.IsString() {
		sa, sb := a.AsString(), b.AsString()
		return value.String(gc.AllocStringBytes(env, append(append([]byte{}, sa.Bytes...), sb.Bytes...))), nil
	}
	af, bf, bothInt, ok := numeric(a, b)
	if !ok {
		return value.Value{}, errors.Errorf("type mismatch in ADD: %s + %s", a.Kind, b.Kind)
	}
	return wrapNumeric(af+bf, bothInt), nil
}

func Sub(a, b value.Value) (value.Value, error) {
	af, bf, bothInt, ok := numeric(a, b)
	if !ok {
		return value.Value{}, errors.Errorf("type mismatch in SUB: %s - %s", a.Kind, b.Kind)
	}
	return wrapNumeric(af-bf, bothInt), nil
}

func Mul(a, b value.Value) (value.Value, error) {
	af, bf, bothInt, ok := numeric(a, b)
	if !ok {
		return value.Value{}, errors.Errorf("type mismatch in MUL: %s * %s", a.Kind, b.Kind)
	}
	return wrapNumeric(af*bf, bothInt), nil
}

func Div(a, b value.Value) (value.Value, error) {
	af, bf, bothInt, ok := numeric(a, b)
	if !ok {
		return value.Value{}, errors.Errorf("type mismatch in DIV: %s / %s", a.Kind, b.Kind)
	}
	if bf == 0 {
		return value.Value{}, errors.New("Division by zero")
	}
	return wrapNumeric(af/bf, bothInt), nil
}

func Mod(a, b value.Value) (value.Value, error) {
	if !a.IsInt() || !b.IsInt() {
		return value.Value{}, errors.Errorf("type mismatch in MOD: %s %% %s", a.Kind, b.Kind)
	}
	if b.AsInt() == 0 {
		return value.Value{}, errors.New("Division by zero")
	}
	return value.Int(a.AsInt() % b.AsInt()), nil
}

func bitwise(name string, a, b value.Value, f func(x, y int32) int32) (value.Value, error) {
	if !a.IsInt() || !b.IsInt() {
		return value.Value{}, errors.Errorf("type mismatch in %s: %s, %s", name, a.Kind, b.Kind)
	}
	return value.Int(f(a.AsInt(), b.AsInt())), nil
}

func And(a, b value.Value) (value.Value, error) {
	return bitwise("AND", a, b, func(x, y int32) int32 { return x & y })
}

func Or(a, b value.Value) (value.Value, error) {
	return bitwise("OR", a, b, func(x, y int32) int32 { return x | y })
}

func Xor(a, b value.Value) (value.Value, error) {
	return bitwise("XOR", a, b, func(x, y int32) int32 { return x ^ y })
}

func Neg(a value.Value) (value.Value, error) {
	switch {
	case a.IsInt():
		return value.Int(-a.AsInt()), nil
	case a.IsFloat():
		return value.Float(-a.AsFloat()), nil
	default:
		return value.Value{}, errors.Errorf("type mismatch in NEG: %s", a.Kind)
	}
}

// compareOrdinal returns -1/0/1, or an error if a and b cannot be
// ordered. Strings compare byte-lexicographically; numbers compare after
// the same int/float promotion ADD uses.
func compareOrdinal(a, b value.Value) (int, error) {
	if a.IsString() && b.IsString() {
		sa, sb := string(a.AsString().Bytes), string(b.AsString().Bytes)
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	af, bf, _, ok := numeric(a, b)
	if !ok {
		return 0, errors.Errorf("type mismatch in comparison: %s, %s", a.Kind, b.Kind)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func boolInt(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}

func Lt(a, b value.Value) (value.Value, error) {
	c, err := compareOrdinal(a, b)
	return boolInt(c < 0), err
}

func Lte(a, b value.Value) (value.Value, error) {
	c, err := compareOrdinal(a, b)
	return boolInt(c <= 0), err
}

func Gt(a, b value.Value) (value.Value, error) {
	c, err := compareOrdinal(a, b)
	return boolInt(c > 0), err
}

func Gte(a, b value.Value) (value.Value, error) {
	c, err := compareOrdinal(a, b)
	return boolInt(c >= 0), err
}

// Eq implements EQ (and EQI, its integer-only JIT hint synonym, which
// the interpreter treats identically). Values of different kinds are
// simply unequal, never an error.
func Eq(a, b value.Value) value.Value {
	return boolInt(valueEqual(a, b))
}

func Neq(a, b value.Value) value.Value {
	return boolInt(!valueEqual(a, b))
}

func valueEqual(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch {
	case a.IsInt():
		return a.AsInt() == b.AsInt()
	case a.IsFloat():
		return a.AsFloat() == b.AsFloat()
	case a.IsString():
		return string(a.AsString().Bytes) == string(b.AsString().Bytes)
	default:
		return a.Object() == b.Object()
	}
}

// LoadArray implements LOADARRAY: array or dict element read, dispatching
// on the container's tag.
func LoadArray(container, key value.Value) (value.Value, error) {
	switch {
	case container.IsArray():
		if !key.IsInt() {
			return value.Value{}, errors.New("array index must be an integer")
		}
		v, ok := container.AsArray().Get(int(key.AsInt()))
		if !ok {
			return value.Value{}, errors.Errorf("Array index %d out-of-range", key.AsInt())
		}
		return v, nil
	case container.IsDict():
		if !key.IsString() {
			return value.Value{}, errors.New("dict key must be a string")
		}
		v, ok := container.AsDict().Get(string(key.AsString().Bytes))
		if !ok {
			return value.Value{}, errors.Errorf("missing dict key %q", key.AsString().Bytes)
		}
		return v, nil
	default:
		return value.Value{}, errors.Errorf("type mismatch in LOADARRAY: %s", container.Kind)
	}
}

// StoreArray implements STOREARRAY, promoting the stored value if the
// container is tenured.
func StoreArray(env *value.Environment, container, key, v value.Value) error {
	switch {
	case container.IsArray():
		if !key.IsInt() {
			return errors.New("array index must be an integer")
		}
		arr := container.AsArray()
		idx := int(key.AsInt())
		if idx == arr.Len() {
			// Storing one past the end extends the array, which is how
			// array literals and push-style code build up contents.
			arr.Append(v)
		} else if !arr.Set(idx, v) {
			return errors.Errorf("Array index %d out-of-range", key.AsInt())
		}
		if arr.Deep() {
			gc.PromoteValue(env, v)
		}
		return nil
	case container.IsDict():
		if !key.IsString() {
			return errors.New("dict key must be a string")
		}
		d := container.AsDict()
		d.Set(string(key.AsString().Bytes), v)
		if d.Deep() {
			gc.PromoteValue(env, v)
		}
		return nil
	default:
		return errors.Errorf("type mismatch in STOREARRAY: %s", container.Kind)
	}
}

// Len implements LEN over strings, arrays and dicts.
func Len(v value.Value) (value.Value, error) {
	switch {
	case v.IsString():
		return value.Int(int32(v.AsString().Len())), nil
	case v.IsArray():
		return value.Int(int32(v.AsArray().Len())), nil
	case v.IsDict():
		return value.Int(int32(v.AsDict().Len())), nil
	default:
		return value.Value{}, errors.Errorf("type mismatch in LEN: %s", v.Kind)
	}
}

// DictKeyByIndex implements GETDICTKEYBYINDEX, allocating a fresh
// StringObj for the key.
func DictKeyByIndex(env *value.Environment, d value.Value, i int32) (value.Value, error) {
	if !d.IsDict() {
		return value.Value{}, errors.Errorf("type mismatch in GETDICTKEYBYINDEX: %s", d.Kind)
	}
	k, ok := d.AsDict().KeyAt(int(i))
	if !ok {
		return value.Value{}, errors.Errorf("dict key index %d out-of-range", i)
	}
	return value.String(gc.AllocString(env, k)), nil
}

// DictValByIndex implements GETDICTVALBYINDEX.
func DictValByIndex(d value.Value, i int32) (value.Value, error) {
	if !d.IsDict() {
		return value.Value{}, errors.Errorf("type mismatch in GETDICTVALBYINDEX: %s", d.Kind)
	}
	v, ok := d.AsDict().ValueAt(int(i))
	if !ok {
		return value.Value{}, errors.Errorf("dict value index %d out-of-range", i)
	}
	return v, nil
}
