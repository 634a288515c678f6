package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tamakomori/linguine/lang/value"
)

func TestIntFloatRoundTrip(t *testing.T) {
	iv := value.Int(-42)
	require.True(t, iv.IsInt())
	require.Equal(t, int32(-42), iv.AsInt())

	fv := value.Float(3.5)
	require.True(t, fv.IsFloat())
	require.Equal(t, float32(3.5), fv.AsFloat())
}

func TestValueSize(t *testing.T) {
	require.EqualValues(t, value.ValueSize, 16)
}

func TestStringObject(t *testing.T) {
	s := value.NewString("hello")
	v := value.String(s)
	require.True(t, v.IsString())
	require.Same(t, s, v.AsString())
	require.Equal(t, "hello", v.String())
	require.True(t, v.Truth())

	empty := value.String(value.NewString(""))
	require.False(t, empty.Truth())
}

func TestArrayObject(t *testing.T) {
	a := value.NewArrayFrom([]value.Value{value.Int(10), value.Int(20), value.Int(30)})
	v := value.Array(a)
	require.True(t, v.IsArray())
	require.Equal(t, 3, a.Len())

	elem, ok := a.Get(1)
	require.True(t, ok)
	require.Equal(t, int32(20), elem.AsInt())

	_, ok = a.Get(3)
	require.False(t, ok)

	require.True(t, a.Set(0, value.Int(99)))
	elem, _ = a.Get(0)
	require.Equal(t, int32(99), elem.AsInt())

	a.Append(value.Int(40))
	require.Equal(t, 4, a.Len())

	require.True(t, a.Remove(0))
	require.Equal(t, 3, a.Len())
	elem, _ = a.Get(0)
	require.Equal(t, int32(20), elem.AsInt())
}

func TestArrayResize(t *testing.T) {
	a := value.NewArray()
	a.Resize(3)
	require.Equal(t, 3, a.Len())
	for i := 0; i < 3; i++ {
		elem, _ := a.Get(i)
		require.Equal(t, int32(0), elem.AsInt())
	}
	a.Resize(1)
	require.Equal(t, 1, a.Len())
}

func TestDictOrderAndUnset(t *testing.T) {
	d := value.NewDict()
	d.Set("b", value.Int(2))
	d.Set("a", value.Int(1))
	d.Set("b", value.Int(22)) // update, not re-insert

	require.Equal(t, 2, d.Len())
	require.Equal(t, "b", d.Keys[0])
	require.Equal(t, "a", d.Keys[1])

	got, ok := d.Get("b")
	require.True(t, ok)
	require.Equal(t, int32(22), got.AsInt())

	require.True(t, d.Unset("b"))
	require.Equal(t, 1, d.Len())
	require.Equal(t, "a", d.Keys[0])

	require.False(t, d.Unset("missing"))
}

func TestDictIndexAccessors(t *testing.T) {
	d := value.NewDict()
	d.Set("x", value.Int(7))
	d.Set("y", value.Int(8))

	k, ok := d.KeyAt(1)
	require.True(t, ok)
	require.Equal(t, "y", k)

	v, ok := d.ValueAt(0)
	require.True(t, ok)
	require.Equal(t, int32(7), v.AsInt())

	_, ok = d.KeyAt(5)
	require.False(t, ok)
}

func TestBindingListFirstWriteCreatesLocal(t *testing.T) {
	var l value.BindingList
	created := l.Set("x", value.Int(1))
	require.True(t, created)

	created = l.Set("x", value.Int(2))
	require.False(t, created)

	got, ok := l.Lookup("x")
	require.True(t, ok)
	require.Equal(t, int32(2), got.AsInt())

	_, ok = l.Lookup("missing")
	require.False(t, ok)
}

func TestFuncValueHasNoTrackedObject(t *testing.T) {
	fn := value.NewBytecodeFunc("f", "f.lg", nil, nil, 1)
	v := value.Func(fn)

	require.True(t, v.IsFunc())
	require.Same(t, fn, v.AsFunc())
	require.Nil(t, v.Object(), "functions live in the registry, not the GC lists")
}
