package lir

import (
	"fmt"

	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/hir"
)

// Func is one lowered function: name, parameter names, the
// register-file size its frames must allocate, and the assembled
// bytecode stream.
type Func struct {
	Name       string
	File       string
	Params     []string
	TmpVarSize int
	Bytecode   []byte
}

// retSlot is where a function's result lives on normal completion. The
// HIR builder rewrites every `return e` into an assignment to the
// pseudo-symbol "$return", which the lowerer binds to this slot. With
// parameters present, slot 0 doubles as the first argument; clobbering
// it at return time is fine because control transfers straight to the
// epilogue.
const retSlot = 0

// retSym must match the pseudo-symbol hir's return rewrite assigns to.
const retSym = "$return"

// Lower walks one HIR function in structured order and assembles its
// bytecode. Parameters occupy the stable prefix of the slot space,
// declared locals extend it, and everything else is scratch acquired
// and released around each statement.
func Lower(hf *hir.Function, optimize bool) (*Func, error) {
	fb := hf.Block(0)
	if len(fb.Params) > maxArgs {
		return nil, &Error{File: fb.File, Line: fb.Pos.Line,
			Message: fmt.Sprintf("too many parameters (limit %d)", maxArgs)}
	}

	b := NewBuilder(fb.Name, fb.File, fb.Params, optimize)
	lo := &lowerer{
		hf:      hf,
		b:       b,
		scope:   make(map[string]int),
		emitted: make([]bool, len(hf.Blocks)),
		next:    BlockID(len(hf.Blocks)),
	}

	for _, p := range fb.Params {
		lo.scope[p] = b.AllocTmp()
	}
	if len(fb.Params) == 0 {
		b.AllocTmp() // keep slot 0 reserved for the return value
	}
	lo.scope[retSym] = retSlot

	lo.emitChain(fb.Inner)
	b.Mark(BlockID(hf.End))

	if err := b.Err(); err != nil {
		return nil, err
	}
	code, tmpSize, err := b.Finish()
	if err != nil {
		return nil, err
	}
	return &Func{
		Name:       fb.Name,
		File:       fb.File,
		Params:     fb.Params,
		TmpVarSize: tmpSize,
		Bytecode:   code,
	}, nil
}

// lowerer carries the per-function lowering state: the block arena being
// walked, the assembler, the name→slot bindings for parameters and
// declared locals, and the emitted set that keeps the cyclic block graph
// (loop back-edges) from being visited twice.
type lowerer struct {
	hf      *hir.Function
	b       *Builder
	scope   map[string]int
	emitted []bool
	next    BlockID // fresh LIR-only labels, above the HIR block id space
	line    int
}

// lirID maps a HIR block id onto its LIR jump label; the two id spaces
// share a prefix so that every HIR successor edge is directly emittable.
func lirID(id hir.BlockID) BlockID { return BlockID(id) }

func (lo *lowerer) newLabel() BlockID {
	id := lo.next
	lo.next++
	return id
}

// declare binds name to a stable slot, allocating one on first sight.
// Declared locals are never released; they extend the parameter prefix
// for the rest of the function.
func (lo *lowerer) declare(name string) int {
	if slot, ok := lo.scope[name]; ok {
		return slot
	}
	slot := lo.b.AllocTmp()
	lo.scope[name] = slot
	return slot
}

// emitChain emits the block at id and follows successor edges until the
// chain reaches an already-emitted block (a back-edge) or the function's
// End sentinel. All control transfer is expressed through block labels,
// so emission order never affects semantics, only layout.
func (lo *lowerer) emitChain(id hir.BlockID) {
	for id >= 0 && int(id) < len(lo.emitted) && !lo.emitted[id] {
		blk := lo.hf.Block(id)

		if blk.Kind == hir.KindEnd {
			// The End block is marked exactly once, after the whole body,
			// so that its address equals the bytecode size (the epilogue
			// target). Reaching it mid-chain just jumps.
			lo.b.JMP(lirID(id))
			return
		}

		lo.emitted[id] = true

		switch blk.Kind {
		case hir.KindBasic:
			lo.b.Mark(lirID(id))
			for _, s := range blk.Stmts {
				lo.lowerStmt(s)
			}
			if blk.Inner >= 0 {
				// A wrapper block (an else branch) descends into its body;
				// the body's own terminal block transfers control onward.
				lo.emitChain(blk.Inner)
			} else if blk.Stop {
				// A break/continue/return edge. Stop means the successor is
				// not a fallthrough target, so the chain ends here.
				lo.b.JMP(lirID(blk.Succ))
				return
			} else if blk.Succ >= 0 && lo.emitted[blk.Succ] {
				// Back-edge to an already-emitted loop header.
				lo.b.JMP(lirID(blk.Succ))
			}
			id = blk.Succ

		case hir.KindIf:
			lo.b.Mark(lirID(id))
			lo.b.LINEINFO(blk.Pos)
			cond := lo.b.AllocTmp()
			lo.exprTo(cond, blk.Cond)
			elseTarget := blk.Succ
			if blk.ChainNext >= 0 {
				elseTarget = blk.ChainNext
			}
			lo.b.JMPIFFALSE(cond, lirID(elseTarget))
			lo.b.FreeTmp(1)
			lo.emitChain(blk.Inner)
			if blk.ChainNext >= 0 {
				lo.emitChain(blk.ChainNext)
			}
			id = blk.Succ

		case hir.KindWhile:
			// The While block's own label is the test, which is also the
			// body's fallthrough back-edge target; continue jumps to the
			// body's first block instead.
			lo.b.Mark(lirID(id))
			lo.b.LINEINFO(blk.Pos)
			cond := lo.b.AllocTmp()
			lo.exprTo(cond, blk.Cond)
			lo.b.JMPIFFALSE(cond, lirID(blk.Succ))
			lo.b.FreeTmp(1)
			lo.emitChain(blk.Inner)
			id = blk.Succ

		case hir.KindFor:
			lo.lowerFor(blk, lirID(id))
			id = blk.Succ

		default:
			lo.fail(blk.Pos.Line, "unknown block kind %s", blk.Kind)
			return
		}
	}
}

// lowerFor expands the three for-loop shapes into explicit induction:
// a counter slot, a size slot from LEN, and an EQI + JMPIFEQ exit test
// at the header to hint the JIT. The
// loop's own label (stepLbl, the target of the body's fallthrough
// back-edge) sits on the increment, so init code runs exactly once as
// straight-line fallthrough before an entry jump to the test. continue
// jumps to the body's first block, skipping both increment and test.
func (lo *lowerer) lowerFor(blk *hir.Block, stepLbl BlockID) {
	exit := lirID(blk.Succ)
	test := lo.newLabel()
	lo.b.LINEINFO(blk.Pos)

	switch blk.ForShape {
	case hir.ForRanged:
		counter := lo.declare(blk.Counter)
		stop := lo.b.AllocTmp()
		cmp := lo.b.AllocTmp()
		lo.exprTo(counter, blk.RangeStart)
		lo.exprTo(stop, blk.RangeStop)
		lo.b.JMP(test)
		lo.b.Mark(stepLbl)
		lo.b.INC(counter)
		lo.b.Mark(test)
		lo.b.EQI(cmp, counter, stop)
		lo.b.JMPIFEQ(cmp, exit)
		lo.emitChain(blk.Inner)
		lo.b.FreeTmp(2)

	case hir.ForValueIter:
		val := lo.declare(blk.ValueSym)
		coll := lo.b.AllocTmp()
		size := lo.b.AllocTmp()
		counter := lo.b.AllocTmp()
		cmp := lo.b.AllocTmp()
		lo.exprTo(coll, blk.Collection)
		lo.b.LEN(size, coll)
		lo.b.ICONST(counter, 0)
		lo.b.JMP(test)
		lo.b.Mark(stepLbl)
		lo.b.INC(counter)
		lo.b.Mark(test)
		lo.b.EQI(cmp, counter, size)
		lo.b.JMPIFEQ(cmp, exit)
		lo.b.LOADARRAY(val, coll, counter)
		lo.emitChain(blk.Inner)
		lo.b.FreeTmp(4)

	case hir.ForDictIter:
		key := lo.declare(blk.KeySym)
		val := lo.declare(blk.ValueSym)
		coll := lo.b.AllocTmp()
		size := lo.b.AllocTmp()
		counter := lo.b.AllocTmp()
		cmp := lo.b.AllocTmp()
		lo.exprTo(coll, blk.Collection)
		lo.b.LEN(size, coll)
		lo.b.ICONST(counter, 0)
		lo.b.JMP(test)
		lo.b.Mark(stepLbl)
		lo.b.INC(counter)
		lo.b.Mark(test)
		lo.b.EQI(cmp, counter, size)
		lo.b.JMPIFEQ(cmp, exit)
		lo.b.GETDICTKEYBYINDEX(key, coll, counter)
		lo.b.GETDICTVALBYINDEX(val, coll, counter)
		lo.emitChain(blk.Inner)
		lo.b.FreeTmp(4)
	}
}

func (lo *lowerer) lowerStmt(s ast.Stmt) {
	lo.line = s.Pos().Line
	lo.b.LINEINFO(s.Pos())

	switch s := s.(type) {
	case *ast.ExprStmt:
		t := lo.b.AllocTmp()
		lo.exprTo(t, s.X)
		lo.b.FreeTmp(1)

	case *ast.VarDeclStmt:
		slot := lo.declare(s.Name)
		if s.Init != nil {
			lo.exprTo(slot, s.Init)
		} else {
			lo.b.ICONST(slot, 0)
		}

	case *ast.AssignStmt:
		lo.lowerAssign(s)

	default:
		lo.fail(lo.line, "unexpected statement %T in basic block", s)
	}
}

func (lo *lowerer) lowerAssign(s *ast.AssignStmt) {
	switch target := s.Target.(type) {
	case *ast.IdentExpr:
		if slot, ok := lo.scope[target.Name]; ok {
			lo.exprTo(slot, s.Value)
			return
		}
		t := lo.b.AllocTmp()
		lo.exprTo(t, s.Value)
		lo.b.STORESYMBOL(target.Name, t)
		lo.b.FreeTmp(1)

	case *ast.IndexExpr:
		c := lo.b.AllocTmp()
		k := lo.b.AllocTmp()
		v := lo.b.AllocTmp()
		lo.exprTo(c, target.X)
		lo.exprTo(k, target.Index)
		lo.exprTo(v, s.Value)
		lo.b.STOREARRAY(c, k, v)
		lo.b.FreeTmp(3)

	case *ast.DotExpr:
		o := lo.b.AllocTmp()
		v := lo.b.AllocTmp()
		lo.exprTo(o, target.X)
		lo.exprTo(v, s.Value)
		lo.b.STOREDOT(o, target.Name, v)
		lo.b.FreeTmp(2)

	default:
		lo.fail(lo.line, "cannot assign to %T", s.Target)
	}
}

func (lo *lowerer) fail(line int, format string, args ...interface{}) {
	lo.b.fail(line, format, args...)
}
