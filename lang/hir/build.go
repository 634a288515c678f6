package hir

import (
	"fmt"

	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/token"
)

// anonName builds the $anon.<file>.<counter> symbol an anonymous function
// literal is hoisted under.
func anonName(file string, counter int) string {
	return fmt.Sprintf("$anon.%s.%d", file, counter)
}

// Error is a compile-time HIR failure.
type Error struct {
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message) }

// maxAnonPerFunc is a generous backstop against runaway hoisting, not a
// hard protocol limit: nothing downstream encodes this count in a
// fixed-width operand.
const maxAnonPerFunc = 4096

type loopCtx struct {
	inner BlockID // loop body entry, the continue target
	exit  BlockID
}

// builder holds the per-function state used while lowering one
// ast.Func's body into a Function's block arena.
type builder struct {
	fn   *Function
	file string

	loops []loopCtx

	anonCounter int
	anonQueue   []*ast.FuncLit
	anonNames   []string

	err *Error
}

// Build lowers one ast.Func into its HIR Function, plus the list of
// anonymous function literals it deferred along with the symbol name
// each was hoisted under. Callers recursively Build each deferred literal
// (itself potentially deferring further anonymous functions) the same
// way; BuildProgram does exactly that for a whole compilation unit.
func Build(fn *ast.Func) (f *Function, anonLits []*ast.FuncLit, anonNames []string, err error) {
	return buildFunc(fn, 0)
}

// BuildProgram lowers every function in prog in declaration order,
// processing the deferred anonymous-function worklist after each
// enclosing function. The $anon counter is scoped to the whole file, not
// to one function, so hoisted names stay unique across the compilation
// unit.
func BuildProgram(prog *ast.Program) ([]*Function, error) {
	counter := 0
	queue := append([]*ast.Func(nil), prog.Functions...)
	var out []*Function
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]

		f, lits, names, err := buildFunc(fn, counter)
		if err != nil {
			return nil, err
		}
		counter += len(lits)
		out = append(out, f)

		for i, lit := range lits {
			queue = append(queue, &ast.Func{
				Name:   names[i],
				File:   fn.File,
				Params: lit.Params,
				Body:   lit.Body,
				P:      lit.Pos(),
			})
		}
	}
	return out, nil
}

func buildFunc(fn *ast.Func, anonBase int) (f *Function, anonLits []*ast.FuncLit, anonNames []string, err error) {
	b := &builder{fn: &Function{}, file: fn.File, anonCounter: anonBase}

	entry := b.newBlock(KindFunc, fn.Pos())
	fb := b.fn.Block(entry)
	fb.Parent = noBlock
	fb.Name = fn.Name
	fb.File = fn.File
	fb.Params = fn.Params

	end := b.newBlock(KindEnd, fn.Pos())
	b.fn.End = end
	b.fn.Block(end).Parent = entry

	body := b.lowerStmts(entry, fn.Body, end)
	fb.Inner = body

	if b.err != nil {
		return nil, nil, nil, b.err
	}
	return b.fn, b.anonQueue, b.anonNames, nil
}

func (b *builder) fail(pos ast.Node, format string, args ...interface{}) {
	if b.err == nil {
		b.err = &Error{File: b.file, Line: pos.Pos().Line, Message: fmt.Sprintf(format, args...)}
	}
}

func (b *builder) newBlock(k Kind, pos token.Pos) BlockID {
	id := BlockID(len(b.fn.Blocks))
	b.fn.Blocks = append(b.fn.Blocks, &Block{Kind: k, Pos: pos, Succ: noBlock, Inner: noBlock, ChainPrev: noBlock, ChainNext: noBlock})
	return id
}
