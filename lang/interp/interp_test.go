package interp_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamakomori/linguine/lang/lir"
	"github.com/tamakomori/linguine/lang/runtime"
	"github.com/tamakomori/linguine/lang/value"
)

func assemble(t *testing.T, build func(b *lir.Builder)) ([]byte, int) {
	t.Helper()
	b := lir.NewBuilder("f", "f.lg", nil, true)
	build(b)
	code, tmpSize, err := b.Finish()
	require.NoError(t, err)
	return code, tmpSize
}

func TestReturnOnePlusTwo(t *testing.T) {
	code, size := assemble(t, func(b *lir.Builder) {
		a := b.AllocTmp()
		c := b.AllocTmp()
		b.ICONST(a, 1)
		b.ICONST(c, 2)
		b.ADD(0, a, c)
	})

	h := runtime.NewHost()
	h.RegisterBytecode("main", "main.lg", nil, code, max(size, 1))

	result, err := h.Call(context.Background(), "main")
	require.NoError(t, err)
	assert.True(t, result.IsInt())
	assert.Equal(t, int32(3), result.AsInt())
}

func TestArrayIndex(t *testing.T) {
	code, size := assemble(t, func(b *lir.Builder) {
		arr := b.AllocTmp()
		idx := b.AllocTmp()
		v0 := b.AllocTmp()
		v1 := b.AllocTmp()
		v2 := b.AllocTmp()
		b.ACONST(arr)
		b.ICONST(v0, 10)
		b.ICONST(v1, 20)
		b.ICONST(v2, 30)
		b.ICONST(idx, 0)
		b.STOREARRAY(arr, idx, v0)
		b.ICONST(idx, 1)
		b.STOREARRAY(arr, idx, v1)
		b.ICONST(idx, 2)
		b.STOREARRAY(arr, idx, v2)
		b.ICONST(idx, 1)
		b.LOADARRAY(0, arr, idx)
	})

	h := runtime.NewHost()
	h.RegisterBytecode("main", "main.lg", nil, code, max(size, 1))

	result, err := h.Call(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int32(20), result.AsInt())
	assert.Equal(t, int64(0), h.HeapUsage(), "array must be reclaimed on frame teardown")
}

func TestArrayOutOfRangeFails(t *testing.T) {
	code, size := assemble(t, func(b *lir.Builder) {
		arr := b.AllocTmp()
		idx := b.AllocTmp()
		b.ACONST(arr)
		b.ICONST(idx, 5)
		b.LOADARRAY(0, arr, idx)
	})

	h := runtime.NewHost()
	h.RegisterBytecode("main", "main.lg", nil, code, max(size, 1))

	_, err := h.Call(context.Background(), "main")
	require.Error(t, err)
}

func TestDivisionByZeroFails(t *testing.T) {
	code, size := assemble(t, func(b *lir.Builder) {
		a := b.AllocTmp()
		z := b.AllocTmp()
		b.ICONST(a, 10)
		b.ICONST(z, 0)
		b.DIV(0, a, z)
	})

	h := runtime.NewHost()
	h.RegisterBytecode("main", "main.lg", nil, code, max(size, 1))

	_, err := h.Call(context.Background(), "main")
	require.Error(t, err)
}

func TestIntPlusFloatPromotesToFloat(t *testing.T) {
	code, size := assemble(t, func(b *lir.Builder) {
		i := b.AllocTmp()
		f := b.AllocTmp()
		b.ICONST(i, 1)
		b.FCONST(f, floatBits(3.0))
		b.ADD(0, i, f)
	})

	h := runtime.NewHost()
	h.RegisterBytecode("main", "main.lg", nil, code, max(size, 1))

	result, err := h.Call(context.Background(), "main")
	require.NoError(t, err)
	assert.True(t, result.IsFloat())
	assert.Equal(t, float32(4.0), result.AsFloat())
}

func TestCallNestedFunction(t *testing.T) {
	addCode, addSize := assemble(t, func(b *lir.Builder) {
		b.ADD(0, 0, 1)
	})

	mainCode, mainSize := assemble(t, func(b *lir.Builder) {
		fn := b.AllocTmp()
		a := b.AllocTmp()
		c := b.AllocTmp()
		b.LOADSYMBOL(fn, "add")
		b.ICONST(a, 4)
		b.ICONST(c, 5)
		b.CALL(0, fn, []int{a, c})
	})

	h := runtime.NewHost()
	addFn := h.RegisterBytecode("add", "add.lg", []string{"a", "b"}, addCode, max(addSize, 2))
	h.SetGlobal("add", value.Func(addFn))
	h.RegisterBytecode("main", "main.lg", nil, mainCode, max(mainSize, 1))

	result, err := h.Call(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int32(9), result.AsInt())
}

func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}
