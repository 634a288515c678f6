package hir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/hir"
	"github.com/tamakomori/linguine/lang/token"
)

func fn(name string, params []string, body ...ast.Stmt) *ast.Func {
	return &ast.Func{Name: name, File: "test.lg", Params: params, Body: body, P: token.Pos{File: "test.lg", Line: 1}}
}

func intLit(v int32) *ast.IntLit { return &ast.IntLit{Value: v} }

func ident(name string) *ast.IdentExpr { return &ast.IdentExpr{Name: name} }

func TestReturnRewritesToPseudoSymbolAssignment(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil,
		&ast.ReturnStmt{Value: intLit(3)},
	))
	require.NoError(t, err)

	entry := f.Block(f.Block(0).Inner)
	require.Equal(t, hir.KindBasic, entry.Kind)
	require.Len(t, entry.Stmts, 1)

	assign, ok := entry.Stmts[0].(*ast.AssignStmt)
	require.True(t, ok)
	target, ok := assign.Target.(*ast.IdentExpr)
	require.True(t, ok)
	assert.Equal(t, "$return", target.Name)

	assert.Equal(t, f.End, entry.Succ)
	assert.True(t, entry.Stop)
}

func TestBareReturnJumpsToEndWithoutAssignment(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil, &ast.ReturnStmt{}))
	require.NoError(t, err)

	entry := f.Block(f.Block(0).Inner)
	assert.Empty(t, entry.Stmts)
	assert.Equal(t, f.End, entry.Succ)
	assert.True(t, entry.Stop)
}

func TestWhileBodyFallsThroughToHeader(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil,
		&ast.WhileStmt{
			Cond: intLit(1),
			Body: []ast.Stmt{&ast.ExprStmt{X: intLit(0)}},
		},
	))
	require.NoError(t, err)

	entry := f.Block(f.Block(0).Inner)
	header := f.Block(entry.Succ)
	require.Equal(t, hir.KindWhile, header.Kind)

	body := f.Block(header.Inner)
	require.Equal(t, hir.KindBasic, body.Kind)
	assert.Equal(t, entry.Succ, body.Succ, "loop body falls through to its header")
	assert.False(t, body.Stop)

	exit := f.Block(header.Succ)
	assert.Equal(t, hir.KindBasic, exit.Kind)
}

func TestBreakTargetsLoopExitWithStop(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil,
		&ast.WhileStmt{
			Cond: intLit(1),
			Body: []ast.Stmt{&ast.BreakStmt{}},
		},
	))
	require.NoError(t, err)

	entry := f.Block(f.Block(0).Inner)
	header := f.Block(entry.Succ)
	body := f.Block(header.Inner)

	assert.Equal(t, header.Succ, body.Succ, "break jumps to the loop exit")
	assert.True(t, body.Stop)
}

func TestContinueTargetsLoopBodyEntryWithStop(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil,
		&ast.WhileStmt{
			Cond: intLit(1),
			Body: []ast.Stmt{&ast.ExprStmt{X: intLit(0)}, &ast.ContinueStmt{}},
		},
	))
	require.NoError(t, err)

	entry := f.Block(f.Block(0).Inner)
	header := f.Block(entry.Succ)
	body := f.Block(header.Inner)

	assert.Equal(t, header.Inner, body.Succ,
		"continue jumps to the loop's first inner block, not the header")
	assert.True(t, body.Stop)
}

func TestBreakOutsideLoopFails(t *testing.T) {
	_, _, _, err := hir.Build(fn("main", nil, &ast.BreakStmt{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break outside of a loop")
}

func TestContinueOutsideLoopFails(t *testing.T) {
	_, _, _, err := hir.Build(fn("main", nil, &ast.ContinueStmt{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "continue outside of a loop")
}

func TestIfElifElseChainSharesOneExit(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil,
		&ast.IfStmt{
			Cond: ident("a"),
			Then: []ast.Stmt{&ast.ExprStmt{X: intLit(1)}},
			ElseIf: []*ast.IfStmt{
				{Cond: ident("b"), Then: []ast.Stmt{&ast.ExprStmt{X: intLit(2)}}},
			},
			Else: []ast.Stmt{&ast.ExprStmt{X: intLit(3)}},
		},
	))
	require.NoError(t, err)

	entry := f.Block(f.Block(0).Inner)
	head := f.Block(entry.Succ)
	require.Equal(t, hir.KindIf, head.Kind)

	exit := head.Succ

	elif := f.Block(head.ChainNext)
	require.Equal(t, hir.KindIf, elif.Kind)
	assert.Equal(t, entry.Succ, elif.ChainPrev)
	assert.Equal(t, exit, elif.Succ, "elif shares the chain's exit block")

	elseBlk := f.Block(elif.ChainNext)
	require.Equal(t, hir.KindBasic, elseBlk.Kind)
	assert.Equal(t, head.ChainNext, elseBlk.ChainPrev)
	assert.Equal(t, exit, elseBlk.Succ, "else shares the chain's exit block")

	thenTail := f.Block(head.Inner)
	assert.Equal(t, exit, thenTail.Succ, "then body falls through to the exit")
}

func TestForShapes(t *testing.T) {
	f, _, _, err := hir.Build(fn("main", nil,
		&ast.ForRangeStmt{Counter: "i", Start: intLit(0), Stop: intLit(10)},
		&ast.ForInStmt{Key: "k", Value: "v", Collection: ident("d")},
		&ast.ForInStmt{Value: "x", Collection: ident("a")},
	))
	require.NoError(t, err)

	var fors []*hir.Block
	for _, b := range f.Blocks {
		if b.Kind == hir.KindFor {
			fors = append(fors, b)
		}
	}
	require.Len(t, fors, 3)

	assert.Equal(t, hir.ForRanged, fors[0].ForShape)
	assert.Equal(t, "i", fors[0].Counter)

	assert.Equal(t, hir.ForDictIter, fors[1].ForShape)
	assert.Equal(t, "k", fors[1].KeySym)
	assert.Equal(t, "v", fors[1].ValueSym)

	assert.Equal(t, hir.ForValueIter, fors[2].ForShape)
	assert.Equal(t, "x", fors[2].ValueSym)
}

func TestAnonymousFunctionLiteralIsHoisted(t *testing.T) {
	lit := &ast.FuncLit{
		Params: []string{"x"},
		Body:   []ast.Stmt{&ast.ReturnStmt{Value: ident("x")}},
	}
	f, lits, names, err := hir.Build(fn("main", nil,
		&ast.VarDeclStmt{Name: "f", Init: lit},
	))
	require.NoError(t, err)

	require.Len(t, lits, 1)
	require.Len(t, names, 1)
	assert.Same(t, lit, lits[0])
	assert.Equal(t, "$anon.test.lg.0", names[0])

	entry := f.Block(f.Block(0).Inner)
	decl, ok := entry.Stmts[0].(*ast.VarDeclStmt)
	require.True(t, ok)
	ref, ok := decl.Init.(*ast.IdentExpr)
	require.True(t, ok)
	assert.Equal(t, "$anon.test.lg.0", ref.Name)
}
