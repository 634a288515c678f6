package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/runtime"
	"github.com/tamakomori/linguine/lang/token"
	"github.com/tamakomori/linguine/lang/value"
)

// Small AST constructors; the parser that would normally produce these is
// an external collaborator, so tests build the trees by hand.

func prog(fns ...*ast.Func) *ast.Program {
	return &ast.Program{File: "main.lg", Functions: fns}
}

func fun(name string, params []string, body ...ast.Stmt) *ast.Func {
	return &ast.Func{Name: name, File: "main.lg", Params: params, Body: body,
		P: token.Pos{File: "main.lg", Line: 1}}
}

func num(v int32) *ast.IntLit          { return &ast.IntLit{Value: v} }
func flt(v float32) *ast.FloatLit      { return &ast.FloatLit{Value: v} }
func str(s string) *ast.StringLit      { return &ast.StringLit{Value: s} }
func id(name string) *ast.IdentExpr    { return &ast.IdentExpr{Name: name} }
func ret(e ast.Expr) *ast.ReturnStmt   { return &ast.ReturnStmt{Value: e} }
func decl(n string, e ast.Expr) ast.Stmt { return &ast.VarDeclStmt{Name: n, Init: e} }

func bin(op token.Token, x, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{Op: op, X: x, Y: y}
}

func set(target, v ast.Expr) ast.Stmt { return &ast.AssignStmt{Target: target, Value: v} }

func index(x, i ast.Expr) *ast.IndexExpr { return &ast.IndexExpr{X: x, Index: i} }

func call(fn ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fn: fn, Args: args}
}

func newHost(t *testing.T, p *ast.Program) *runtime.Host {
	t.Helper()
	h := runtime.NewHost()
	require.NoError(t, h.RegisterProgram(p, true))
	return h
}

func callMain(t *testing.T, h *runtime.Host) value.Value {
	t.Helper()
	v, err := h.Call(context.Background(), "main")
	require.NoError(t, err)
	return v
}

func TestAddTwoConstants(t *testing.T) {
	h := newHost(t, prog(fun("main", nil, ret(bin(token.PLUS, num(1), num(2))))))

	before := h.HeapUsage()
	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(3), v.AsInt())
	assert.Equal(t, before, h.HeapUsage(), "pure arithmetic must not grow the heap")
}

func TestArrayLiteralIndexing(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("a", &ast.ArrayLit{Elems: []ast.Expr{num(10), num(20), num(30)}}),
		ret(index(id("a"), num(1))),
	)))

	before := h.HeapUsage()
	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(20), v.AsInt())
	assert.Equal(t, before, h.HeapUsage(), "frame teardown reclaims the array")
}

func TestDictStoreAndLoad(t *testing.T) {
	var sizeDuringCall int
	h := runtime.NewHost()
	h.RegisterForeign("probe", []string{"d"}, func(c value.ForeignContext) error {
		sizeDuringCall = c.Arg(0).AsDict().Len()
		return nil
	})
	require.NoError(t, h.RegisterProgram(prog(fun("main", nil,
		decl("d", &ast.DictLit{}),
		set(index(id("d"), str("x")), num(7)),
		&ast.ExprStmt{X: call(id("probe"), id("d"))},
		ret(index(id("d"), str("x"))),
	)), true))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(7), v.AsInt())
	assert.Equal(t, 1, sizeDuringCall)
}

func TestRangedForSum(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("s", num(0)),
		&ast.ForRangeStmt{Counter: "i", Start: num(0), Stop: num(10), Body: []ast.Stmt{
			set(id("s"), bin(token.PLUS, id("s"), id("i"))),
		}},
		ret(id("s")),
	)))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(45), v.AsInt())
}

func TestRecursiveFactorial(t *testing.T) {
	fact := fun("fact", []string{"n"},
		&ast.IfStmt{
			Cond: bin(token.EQ, id("n"), num(0)),
			Then: []ast.Stmt{ret(num(1))},
		},
		ret(bin(token.STAR, id("n"), call(id("fact"), bin(token.MINUS, id("n"), num(1))))),
	)
	h := newHost(t, prog(fact, fun("main", nil, ret(call(id("fact"), num(5))))))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(120), v.AsInt())
}

func TestIntPlusFloatPromotesToFloat(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("a", &ast.ArrayLit{Elems: []ast.Expr{num(1), str("two"), flt(3.0)}}),
		ret(bin(token.PLUS, index(id("a"), num(0)), index(id("a"), num(2)))),
	)))

	v := callMain(t, h)
	require.True(t, v.IsFloat(), "int+float promotes to float")
	assert.Equal(t, float32(4.0), v.AsFloat())
}

func TestDictIterationOrderAndValues(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("d", &ast.DictLit{}),
		set(index(id("d"), str("a")), num(1)),
		set(index(id("d"), str("b")), num(2)),
		decl("s", num(0)),
		&ast.ForInStmt{Key: "k", Value: "v", Collection: id("d"), Body: []ast.Stmt{
			set(id("s"), bin(token.PLUS, id("s"), id("v"))),
		}},
		ret(id("s")),
	)))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(3), v.AsInt())
}

func TestArrayValueIteration(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("a", &ast.ArrayLit{Elems: []ast.Expr{num(1), num(2), num(3)}}),
		decl("s", num(0)),
		&ast.ForInStmt{Value: "v", Collection: id("a"), Body: []ast.Stmt{
			set(id("s"), bin(token.PLUS, id("s"), id("v"))),
		}},
		ret(id("s")),
	)))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(6), v.AsInt())
}

func TestAnonymousFunctionCallThroughLocal(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("f", &ast.FuncLit{
			Params: []string{"x"},
			Body:   []ast.Stmt{ret(bin(token.STAR, id("x"), num(2)))},
		}),
		ret(call(id("f"), num(21))),
	)))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(42), v.AsInt())
}

func TestThisCallBindsReceiver(t *testing.T) {
	getx := fun("getx", nil, ret(index(id("this"), str("x"))))
	h := newHost(t, prog(getx, fun("main", nil,
		decl("d", &ast.DictLit{}),
		set(index(id("d"), str("x")), num(7)),
		set(index(id("d"), str("getx")), id("getx")),
		ret(call(&ast.DotExpr{X: id("d"), Name: "getx"})),
	)))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(7), v.AsInt())
}

func TestGlobalReadAndWriteFromScript(t *testing.T) {
	h := runtime.NewHost()
	h.SetGlobal("g", value.Int(5))
	require.NoError(t, h.RegisterProgram(prog(fun("main", nil,
		set(id("g"), bin(token.PLUS, id("g"), num(1))),
		ret(id("g")),
	)), true))

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(6), v.AsInt())

	g, ok := h.Global("g")
	require.True(t, ok)
	assert.Equal(t, int32(6), g.AsInt())
}

func TestDivisionByZeroFailsWithMessage(t *testing.T) {
	h := newHost(t, prog(fun("main", nil, ret(bin(token.SLASH, num(1), num(0))))))

	_, err := h.Call(context.Background(), "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Division by zero")
	assert.Contains(t, h.Env.ErrorMessage(), "Division by zero")
}

func TestArrayIndexOutOfRangeFailsWithMessage(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("a", &ast.ArrayLit{Elems: []ast.Expr{num(1), num(2), num(3)}}),
		ret(index(id("a"), num(3))),
	)))

	_, err := h.Call(context.Background(), "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Array index 3 out-of-range")
}

func TestCallingNonFunctionFails(t *testing.T) {
	h := newHost(t, prog(fun("main", nil,
		decl("x", num(1)),
		ret(call(id("x"))),
	)))

	_, err := h.Call(context.Background(), "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not a function")
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	h := runtime.NewHost()
	err := h.RegisterProgram(prog(fun("main", nil, &ast.BreakStmt{})), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break outside of a loop")
	assert.Contains(t, h.Env.ErrorMessage(), "break outside of a loop")
	assert.Equal(t, "main.lg", h.Env.ErrorFile())
}

func TestForeignFunctionArityIsValidated(t *testing.T) {
	h := runtime.NewHost()
	h.RegisterForeign("one", []string{"x"}, func(c value.ForeignContext) error {
		c.SetResult(c.Arg(0))
		return nil
	})

	_, err := h.Call(context.Background(), "one", value.Int(1), value.Int(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong number of arguments")

	v, err := h.Call(context.Background(), "one", value.Int(9))
	require.NoError(t, err)
	assert.Equal(t, int32(9), v.AsInt())
}

func TestBytecodeFileRoundTripMatchesSourceRegistration(t *testing.T) {
	program := prog(
		fun("fact", []string{"n"},
			&ast.IfStmt{
				Cond: bin(token.EQ, id("n"), num(0)),
				Then: []ast.Stmt{ret(num(1))},
			},
			ret(bin(token.STAR, id("n"), call(id("fact"), bin(token.MINUS, id("n"), num(1))))),
		),
		fun("main", nil, ret(call(id("fact"), num(6)))),
	)

	fromSource := newHost(t, program)
	want := callMain(t, fromSource)

	data, err := fromSource.BytecodeFile("main.lg", "fact", "main")
	require.NoError(t, err)

	fromBytecode := runtime.NewHost()
	require.NoError(t, fromBytecode.RegisterBytecodeFile(data))
	got := callMain(t, fromBytecode)

	require.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.AsInt(), got.AsInt())
	assert.Equal(t, int32(720), got.AsInt())
}

func TestDeepGCKeepsGlobalsReachableState(t *testing.T) {
	h := runtime.NewHost()
	arr := h.NewArray()
	h.ArrayAppend(arr.AsArray(), value.Int(1))
	h.SetGlobal("keep", arr)

	h.DeepGC()
	h.DeepGC() // idempotent

	g, ok := h.Global("keep")
	require.True(t, ok)
	require.True(t, g.IsArray())
	assert.Equal(t, 1, g.AsArray().Len())
	assert.True(t, g.AsArray().Deep())
}

func TestDeepGCLeavesRegisteredFunctionsCallable(t *testing.T) {
	h := newHost(t, prog(
		fun("seven", nil, ret(num(7))),
		fun("main", nil, ret(call(id("seven")))),
	))

	h.DeepGC()
	h.DeepGC()

	v := callMain(t, h)
	require.True(t, v.IsInt())
	assert.Equal(t, int32(7), v.AsInt())
}
