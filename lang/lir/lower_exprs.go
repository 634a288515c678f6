package lir

import (
	"math"

	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/token"
)

// binaryOps maps AST operator tokens to their bytecode opcodes. LIR has
// no short-circuit forms; & and | are the language's (bitwise) and/or.
var binaryOps = map[token.Token]Op{
	token.PLUS:  ADD,
	token.MINUS: SUB,
	token.STAR:  MUL,
	token.SLASH: DIV,
	token.PCT:   MOD,
	token.AMP:   AND,
	token.PIPE:  OR,
	token.CARET: XOR,
	token.LT:    LT,
	token.LTE:   LTE,
	token.GT:    GT,
	token.GTE:   GTE,
	token.EQ:    EQ,
	token.NEQ:   NEQ,
}

// exprTo emits code leaving e's value in slot dst. Sub-expressions use
// scratch slots acquired above dst and released before returning, so a
// statement's peak slot use is proportional to its expression depth.
func (lo *lowerer) exprTo(dst int, e ast.Expr) {
	switch e := e.(type) {
	case *ast.IntLit:
		lo.b.ICONST(dst, e.Value)

	case *ast.FloatLit:
		lo.b.FCONST(dst, math.Float32bits(e.Value))

	case *ast.StringLit:
		lo.b.SCONST(dst, e.Value)

	case *ast.ArrayLit:
		lo.b.ACONST(dst)
		k := lo.b.AllocTmp()
		v := lo.b.AllocTmp()
		for i, el := range e.Elems {
			lo.b.ICONST(k, int32(i))
			lo.exprTo(v, el)
			lo.b.STOREARRAY(dst, k, v)
		}
		lo.b.FreeTmp(2)

	case *ast.DictLit:
		lo.b.DCONST(dst)
		k := lo.b.AllocTmp()
		v := lo.b.AllocTmp()
		for i := range e.Keys {
			lo.b.SCONST(k, e.Keys[i])
			lo.exprTo(v, e.Values[i])
			lo.b.STOREARRAY(dst, k, v)
		}
		lo.b.FreeTmp(2)

	case *ast.IdentExpr:
		if slot, ok := lo.scope[e.Name]; ok {
			if slot != dst {
				lo.b.ASSIGN(dst, slot)
			}
			return
		}
		lo.b.LOADSYMBOL(dst, e.Name)

	case *ast.IndexExpr:
		c := lo.b.AllocTmp()
		k := lo.b.AllocTmp()
		lo.exprTo(c, e.X)
		lo.exprTo(k, e.Index)
		lo.b.LOADARRAY(dst, c, k)
		lo.b.FreeTmp(2)

	case *ast.DotExpr:
		o := lo.b.AllocTmp()
		lo.exprTo(o, e.X)
		lo.b.LOADDOT(dst, o, e.Name)
		lo.b.FreeTmp(1)

	case *ast.CallExpr:
		lo.lowerCall(dst, e)

	case *ast.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			lo.fail(e.Pos().Line, "unknown binary operator %s", e.Op)
			return
		}
		x := lo.b.AllocTmp()
		y := lo.b.AllocTmp()
		lo.exprTo(x, e.X)
		lo.exprTo(y, e.Y)
		lo.b.binary(op, dst, x, y)
		lo.b.FreeTmp(2)

	case *ast.UnaryExpr:
		lo.lowerUnary(dst, e)

	case *ast.FuncLit:
		// The HIR builder hoists every literal before lowering; one
		// surviving here is a builder bug, not user error.
		lo.fail(e.Pos().Line, "unhoisted anonymous function literal")

	default:
		lo.fail(lo.line, "unknown expression %T", e)
	}
}

// lowerCall emits CALL, or THISCALL when the callee is a dot expression:
// a.f(args) becomes THISCALL rather than LOADDOT + CALL, so the receiver
// is bound as "this" in the callee.
func (lo *lowerer) lowerCall(dst int, e *ast.CallExpr) {
	if len(e.Args) > maxArgs {
		lo.fail(e.Pos().Line, "too many call arguments (limit %d)", maxArgs)
		return
	}

	if dot, ok := e.Fn.(*ast.DotExpr); ok {
		obj := lo.b.AllocTmp()
		lo.exprTo(obj, dot.X)
		args := make([]int, len(e.Args))
		for i, a := range e.Args {
			args[i] = lo.b.AllocTmp()
			lo.exprTo(args[i], a)
		}
		lo.b.THISCALL(dst, obj, dot.Name, args)
		lo.b.FreeTmp(1 + len(args))
		return
	}

	fn := lo.b.AllocTmp()
	lo.exprTo(fn, e.Fn)
	args := make([]int, len(e.Args))
	for i, a := range e.Args {
		args[i] = lo.b.AllocTmp()
		lo.exprTo(args[i], a)
	}
	lo.b.CALL(dst, fn, args)
	lo.b.FreeTmp(1 + len(args))
}

func (lo *lowerer) lowerUnary(dst int, e *ast.UnaryExpr) {
	switch e.Op {
	case token.MINUS:
		x := lo.b.AllocTmp()
		lo.exprTo(x, e.X)
		lo.b.NEG(dst, x)
		lo.b.FreeTmp(1)

	case token.LEN:
		x := lo.b.AllocTmp()
		lo.exprTo(x, e.X)
		lo.b.LEN(dst, x)
		lo.b.FreeTmp(1)

	case token.NOT:
		// No NOT opcode exists; branch on truthiness instead.
		x := lo.b.AllocTmp()
		lo.exprTo(x, e.X)
		falsy := lo.newLabel()
		lo.b.ICONST(dst, 1)
		lo.b.JMPIFFALSE(x, falsy)
		lo.b.ICONST(dst, 0)
		lo.b.Mark(falsy)
		lo.b.FreeTmp(1)

	default:
		lo.fail(e.Pos().Line, "unknown unary operator %s", e.Op)
	}
}
