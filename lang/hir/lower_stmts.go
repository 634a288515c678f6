package hir

import (
	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/token"
)

// returnSym is the pseudo-symbol every `return` statement is rewritten
// into an assignment to.
const returnSym = "$return"

// lowerStmts lowers a straight-line statement list into a chain of Basic
// blocks interspersed with If/For/While blocks, returning the entry block
// of the chain. succ is where control falls through to if the list runs
// to completion without an explicit return/break/continue.
func (b *builder) lowerStmts(parent BlockID, stmts []ast.Stmt, succ BlockID) BlockID {
	entry := b.newBlock(KindBasic, listPos(stmts, b.fn.Block(parent).Pos))
	b.fn.Block(entry).Parent = parent
	b.lowerStmtsInto(entry, parent, stmts, succ)
	return entry
}

// lowerStmtsInto is lowerStmts over a caller-created entry block. Loop
// lowering uses it to know the body's entry id before the body is
// lowered, since that id is what continue targets.
func (b *builder) lowerStmtsInto(entry, parent BlockID, stmts []ast.Stmt, succ BlockID) {
	cur := entry

	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.ExprStmt:
			b.fn.Block(cur).Stmts = append(b.fn.Block(cur).Stmts, &ast.ExprStmt{X: b.hoistExpr(s.X)})

		case *ast.VarDeclStmt:
			b.fn.Block(cur).Stmts = append(b.fn.Block(cur).Stmts, &ast.VarDeclStmt{Name: s.Name, Init: b.hoistExpr(s.Init)})

		case *ast.AssignStmt:
			b.fn.Block(cur).Stmts = append(b.fn.Block(cur).Stmts, &ast.AssignStmt{Target: b.hoistExpr(s.Target), Value: b.hoistExpr(s.Value)})

		case *ast.IfStmt:
			exit := b.newBlock(KindBasic, s.Pos())
			b.fn.Block(exit).Parent = parent
			ifHead := b.lowerIfChain(parent, s, exit)
			b.fn.Block(cur).Succ = ifHead
			cur = exit

		case *ast.WhileStmt:
			header := b.newBlock(KindWhile, s.Pos())
			wb := b.fn.Block(header)
			wb.Parent = parent
			wb.Cond = b.hoistExpr(s.Cond)
			exit := b.newBlock(KindBasic, s.Pos())
			b.fn.Block(exit).Parent = parent
			wb.Succ = exit

			body := b.newBlock(KindBasic, listPos(s.Body, s.Pos()))
			b.fn.Block(body).Parent = header
			wb.Inner = body
			b.loops = append(b.loops, loopCtx{inner: body, exit: exit})
			b.lowerStmtsInto(body, header, s.Body, header)
			b.loops = b.loops[:len(b.loops)-1]

			b.fn.Block(cur).Succ = header
			cur = exit

		case *ast.ForRangeStmt:
			header := b.newBlock(KindFor, s.Pos())
			fb := b.fn.Block(header)
			fb.Parent = parent
			fb.ForShape = ForRanged
			fb.Counter = s.Counter
			fb.RangeStart = b.hoistExpr(s.Start)
			fb.RangeStop = b.hoistExpr(s.Stop)
			exit := b.newBlock(KindBasic, s.Pos())
			b.fn.Block(exit).Parent = parent
			fb.Succ = exit

			body := b.newBlock(KindBasic, listPos(s.Body, s.Pos()))
			b.fn.Block(body).Parent = header
			fb.Inner = body
			b.loops = append(b.loops, loopCtx{inner: body, exit: exit})
			b.lowerStmtsInto(body, header, s.Body, header)
			b.loops = b.loops[:len(b.loops)-1]

			b.fn.Block(cur).Succ = header
			cur = exit

		case *ast.ForInStmt:
			header := b.newBlock(KindFor, s.Pos())
			fb := b.fn.Block(header)
			fb.Parent = parent
			if s.Key != "" {
				fb.ForShape = ForDictIter
				fb.KeySym = s.Key
			} else {
				fb.ForShape = ForValueIter
			}
			fb.ValueSym = s.Value
			fb.Collection = b.hoistExpr(s.Collection)
			exit := b.newBlock(KindBasic, s.Pos())
			b.fn.Block(exit).Parent = parent
			fb.Succ = exit

			body := b.newBlock(KindBasic, listPos(s.Body, s.Pos()))
			b.fn.Block(body).Parent = header
			fb.Inner = body
			b.loops = append(b.loops, loopCtx{inner: body, exit: exit})
			b.lowerStmtsInto(body, header, s.Body, header)
			b.loops = b.loops[:len(b.loops)-1]

			b.fn.Block(cur).Succ = header
			cur = exit

		case *ast.BreakStmt:
			if len(b.loops) == 0 {
				b.fail(s, "break outside of a loop")
				return
			}
			b.fn.Block(cur).Succ = b.loops[len(b.loops)-1].exit
			b.fn.Block(cur).Stop = true
			cur = b.newBlock(KindBasic, s.Pos())
			b.fn.Block(cur).Parent = parent

		case *ast.ContinueStmt:
			if len(b.loops) == 0 {
				b.fail(s, "continue outside of a loop")
				return
			}
			// Continue re-enters the loop's first inner block directly,
			// bypassing the header's retest (and a for loop's increment);
			// only plain fallthrough at the end of the body goes back
			// through the header.
			b.fn.Block(cur).Succ = b.loops[len(b.loops)-1].inner
			b.fn.Block(cur).Stop = true
			cur = b.newBlock(KindBasic, s.Pos())
			b.fn.Block(cur).Parent = parent

		case *ast.ReturnStmt:
			if s.Value != nil {
				b.fn.Block(cur).Stmts = append(b.fn.Block(cur).Stmts, &ast.AssignStmt{
					Target: &ast.IdentExpr{Name: returnSym},
					Value:  b.hoistExpr(s.Value),
				})
			}
			b.fn.Block(cur).Succ = b.fn.End
			b.fn.Block(cur).Stop = true
			cur = b.newBlock(KindBasic, s.Pos())
			b.fn.Block(cur).Parent = parent

		default:
			b.fail(stmt, "unknown statement kind %T", stmt)
			return
		}
	}

	if !b.fn.Block(cur).Stop {
		b.fn.Block(cur).Succ = succ
	}
}

// lowerIfChain lowers one IfStmt and its ElseIf/Else chain, threading
// ChainPrev/ChainNext and sharing one exit block across every branch.
func (b *builder) lowerIfChain(parent BlockID, s *ast.IfStmt, exit BlockID) BlockID {
	head := b.newBlock(KindIf, s.Pos())
	ib := b.fn.Block(head)
	ib.Parent = parent
	ib.Cond = b.hoistExpr(s.Cond)
	ib.Inner = b.lowerStmts(head, s.Then, exit)
	ib.Succ = exit

	switch {
	case len(s.ElseIf) > 0:
		next := s.ElseIf[0]
		rest := &ast.IfStmt{Cond: next.Cond, Then: next.Then, ElseIf: s.ElseIf[1:], Else: s.Else}
		chainNext := b.lowerIfChain(parent, rest, exit)
		ib.ChainNext = chainNext
		b.fn.Block(chainNext).ChainPrev = head
	case len(s.Else) > 0:
		chainNext := b.newBlock(KindBasic, s.Pos())
		b.fn.Block(chainNext).Parent = parent
		b.fn.Block(chainNext).Inner = b.lowerStmts(chainNext, s.Else, exit)
		b.fn.Block(chainNext).Succ = exit
		ib.ChainNext = chainNext
		b.fn.Block(chainNext).ChainPrev = head
	}
	return head
}

// listPos returns the position of the first statement in stmts, falling
// back to fallback when the list is empty (an empty block body, e.g. an
// if with no else).
func listPos(stmts []ast.Stmt, fallback token.Pos) token.Pos {
	if len(stmts) == 0 {
		return fallback
	}
	return stmts[0].Pos()
}

// hoistExpr rewrites any *ast.FuncLit reachable from e into a symbol
// reference, queuing the literal for separate lowering.
func (b *builder) hoistExpr(e ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *ast.FuncLit:
		return b.hoistAnon(x)
	case *ast.ArrayLit:
		elems := make([]ast.Expr, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = b.hoistExpr(el)
		}
		return &ast.ArrayLit{Elems: elems}
	case *ast.DictLit:
		values := make([]ast.Expr, len(x.Values))
		for i, v := range x.Values {
			values[i] = b.hoistExpr(v)
		}
		return &ast.DictLit{Keys: x.Keys, Values: values}
	case *ast.IndexExpr:
		return &ast.IndexExpr{X: b.hoistExpr(x.X), Index: b.hoistExpr(x.Index)}
	case *ast.DotExpr:
		return &ast.DotExpr{X: b.hoistExpr(x.X), Name: x.Name}
	case *ast.CallExpr:
		args := make([]ast.Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = b.hoistExpr(a)
		}
		return &ast.CallExpr{Fn: b.hoistExpr(x.Fn), Args: args}
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Op: x.Op, X: b.hoistExpr(x.X), Y: b.hoistExpr(x.Y)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Op: x.Op, X: b.hoistExpr(x.X)}
	default:
		// IntLit, FloatLit, StringLit, IdentExpr carry no sub-expressions.
		return e
	}
}

// hoistAnon replaces an anonymous function literal with a reference to
// the symbol it will be compiled under, queuing the literal itself for
// Build to process afterward.
func (b *builder) hoistAnon(lit *ast.FuncLit) ast.Expr {
	if len(b.anonQueue) >= maxAnonPerFunc {
		b.fail(lit, "too many anonymous function literals in one function")
		return &ast.IdentExpr{Name: returnSym}
	}
	name := anonName(b.file, b.anonCounter)
	b.anonCounter++
	b.anonQueue = append(b.anonQueue, lit)
	b.anonNames = append(b.anonNames, name)
	return &ast.IdentExpr{Name: name}
}
