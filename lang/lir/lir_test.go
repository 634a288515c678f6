package lir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamakomori/linguine/lang/lir"
	"github.com/tamakomori/linguine/lang/token"
)

func TestBuilderAssignAndAdd(t *testing.T) {
	b := lir.NewBuilder("main", "main.lg", nil, true)
	a := b.AllocTmp()
	c := b.AllocTmp()
	r := b.AllocTmp()
	b.ICONST(a, 1)
	b.ICONST(c, 2)
	b.ADD(r, a, c)
	b.FreeTmp(3)

	code, tmpSize, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, 3, tmpSize)

	var d lir.Decoder
	d.Code = code

	op, ok := d.Op()
	require.True(t, ok)
	assert.Equal(t, lir.ICONST, op)
}

func TestForwardJumpRelocationResolves(t *testing.T) {
	b := lir.NewBuilder("main", "main.lg", nil, true)
	cond := b.AllocTmp()
	b.ICONST(cond, 0)

	exit := lir.BlockID(1)
	b.JMPIFFALSE(cond, exit)
	b.INC(cond)
	b.Mark(exit)
	b.ASSIGN(cond, cond)

	code, _, err := b.Finish()
	require.NoError(t, err)

	var d lir.Decoder
	d.Code = code
	op, _ := d.Op()
	require.Equal(t, lir.ICONST, op)
	_, _ = d.U16()
	_, _ = d.I32()

	op, _ = d.Op()
	require.Equal(t, lir.JMPIFFALSE, op)
	_, _ = d.U16()
	target, ok := d.Jump()
	require.True(t, ok)
	assert.Greater(t, target, d.PC, "forward jump must resolve past the INC it skips")
}

func TestBackwardJumpUsesKnownAddressImmediately(t *testing.T) {
	b := lir.NewBuilder("main", "main.lg", nil, true)
	header := lir.BlockID(1)
	b.Mark(header)
	cond := b.AllocTmp()
	b.INC(cond)
	b.JMP(header)

	code, _, err := b.Finish()
	require.NoError(t, err)
	assert.NotContains(t, string(code), "\xff\xff\xff\xff")
}

func TestLineInfoSuppressedWhenOptimized(t *testing.T) {
	b := lir.NewBuilder("main", "main.lg", nil, true)
	b.LINEINFO(token.Pos{File: "main.lg", Line: 3})
	code, _, err := b.Finish()
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestTooManyCallArgumentsFails(t *testing.T) {
	b := lir.NewBuilder("main", "main.lg", nil, true)
	args := make([]int, 256)
	b.CALL(0, 1, args)
	_, _, err := b.Finish()
	require.Error(t, err)
}
