package langtest_test

import (
	"testing"

	"github.com/tamakomori/linguine/internal/langtest"
	"github.com/tamakomori/linguine/lang/lir"
	"github.com/tamakomori/linguine/lang/value"
)

func TestParity(t *testing.T) {
	fixtures := []langtest.Fixture{
		{
			Name: "add_two_ints",
			Build: func(b *lir.Builder) {
				b.ADD(0, 0, 1)
			},
			Params: []string{"a", "b"},
			Args:   []value.Value{value.Int(2), value.Int(40)},
		},
		{
			Name: "loop_increment",
			Build: func(b *lir.Builder) {
				limit := b.AllocTmp() // reserves tmp 0, the "n" parameter
				counter := b.AllocTmp()
				b.ICONST(counter, 0)

				top := lir.BlockID(0)
				done := lir.BlockID(1)
				b.Mark(top)
				cond := b.AllocTmp()
				b.LT(cond, counter, limit)
				b.JMPIFFALSE(cond, done)
				b.INC(counter)
				b.JMP(top)
				b.Mark(done)
				b.ASSIGN(0, counter)
			},
			Params: []string{"n"},
			Args:   []value.Value{value.Int(10)},
		},
		{
			Name: "sum_below_eqi",
			Build: func(b *lir.Builder) {
				n := b.AllocTmp()
				i := b.AllocTmp()
				s := b.AllocTmp()
				cmp := b.AllocTmp()

				test, done := lir.BlockID(0), lir.BlockID(1)
				b.ICONST(i, 0)
				b.ICONST(s, 0)
				b.Mark(test)
				b.EQI(cmp, i, n)
				b.JMPIFEQ(cmp, done)
				b.ADD(s, s, i)
				b.INC(i)
				b.JMP(test)
				b.Mark(done)
				b.ASSIGN(0, s)
			},
			Params: []string{"n"},
			Args:   []value.Value{value.Int(10)},
		},
		{
			Name: "string_length",
			Build: func(b *lir.Builder) {
				ret := b.AllocTmp()
				t := b.AllocTmp()
				b.SCONST(t, "hello")
				b.LEN(ret, t)
			},
		},
		{
			Name: "recursive_factorial",
			Build: func(b *lir.Builder) {
				n := b.AllocTmp() // parameter
				zero := b.AllocTmp()
				cmp := b.AllocTmp()
				fn := b.AllocTmp()
				one := b.AllocTmp()
				m := b.AllocTmp()
				res := b.AllocTmp()

				rec, done := lir.BlockID(0), lir.BlockID(1)
				b.ICONST(zero, 0)
				b.EQ(cmp, n, zero)
				b.JMPIFFALSE(cmp, rec)
				b.ICONST(0, 1)
				b.JMP(done)
				b.Mark(rec)
				b.LOADSYMBOL(fn, "recursive_factorial")
				b.ICONST(one, 1)
				b.SUB(m, n, one)
				b.CALL(res, fn, []int{m})
				b.MUL(0, n, res)
				b.Mark(done)
			},
			Params: []string{"n"},
			Args:   []value.Value{value.Int(5)},
		},
	}

	langtest.RunParity(t, fixtures)
}
