// Package langtest is a fixture harness for checking that the bytecode
// interpreter (lang/interp) and the native JIT backend (lang/jit) agree
// on every test program's result. It compares the two backends against
// each other rather than against golden files, since the interpreter is
// the only oracle a native backend has.
package langtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/kr/pretty"
	"golang.org/x/exp/slices"

	"github.com/tamakomori/linguine/lang/jit"
	"github.com/tamakomori/linguine/lang/lir"
	"github.com/tamakomori/linguine/lang/runtime"
	"github.com/tamakomori/linguine/lang/value"
)

// Fixture is one bytecode program: a build function that emits LIR
// through b, the parameter names it declares, and the arguments to call
// it with.
type Fixture struct {
	Name   string
	Params []string
	Build  func(b *lir.Builder)
	Args   []value.Value
}

func (f Fixture) register(host *runtime.Host) (*value.FuncObj, error) {
	b := lir.NewBuilder(f.Name, f.Name+".lg", f.Params, false)
	f.Build(b)
	code, tmpVarSize, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("langtest: %s: %w", f.Name, err)
	}
	return host.RegisterBytecode(f.Name, f.Name+".lg", f.Params, code, tmpVarSize), nil
}

// RunParity runs every fixture through the bytecode interpreter, then
// again through jit.Compile's native path, and fails t if the native
// call errors or the two backends disagree. A fixture whose function
// jit.Compile cannot compile (for example on a host with no native
// emitter) is skipped. Fixtures run in name-sorted order
// (golang.org/x/exp/slices) so failures log in a stable order
// independent of caller-supplied slice order or `go test -shuffle`.
func RunParity(t *testing.T, fixtures []Fixture) {
	t.Helper()

	sorted := append([]Fixture(nil), fixtures...)
	slices.SortFunc(sorted, func(a, b Fixture) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	for _, f := range sorted {
		f := f
		t.Run(f.Name, func(t *testing.T) {
			t.Helper()

			interpHost := runtime.NewHost()
			interpFn, err := f.register(interpHost)
			if err != nil {
				t.Fatal(err)
			}
			want, err := interpHost.CallFunc(context.Background(), interpFn, value.Value{}, f.Args...)
			if err != nil {
				t.Fatalf("interpreter: %v", err)
			}

			jitHost := runtime.NewHost()
			jitFn, err := f.register(jitHost)
			if err != nil {
				t.Fatal(err)
			}
			if err := jit.Compile(jitHost.Env, jitFn); err != nil {
				t.Skipf("native backend unavailable: %v", err)
			}
			got, err := jitHost.CallFunc(context.Background(), jitFn, value.Value{}, f.Args...)
			if err != nil {
				t.Fatalf("jit: %v", err)
			}

			if !equalValue(want, got) {
				diff := pretty.Diff(summarize(want), summarize(got))
				t.Errorf("interpreter/jit mismatch: %v", diff)
			}
		})
	}
}

// summary is a plain, printable stand-in for value.Value (whose Kind tag
// and unsafe.Pointer payload aren't useful in a pretty-printed diff)
// purely so a mismatch report names what actually differs.
type summary struct {
	Kind string
	Int  int32
	Flt  float32
	Str  string
}

func summarize(v value.Value) summary {
	s := summary{Kind: v.Kind.String()}
	switch {
	case v.IsInt():
		s.Int = v.AsInt()
	case v.IsFloat():
		s.Flt = v.AsFloat()
	case v.IsString():
		s.Str = v.AsString().String()
	}
	return s
}

func equalValue(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch {
	case a.IsInt():
		return a.AsInt() == b.AsInt()
	case a.IsFloat():
		return a.AsFloat() == b.AsFloat()
	case a.IsString():
		return a.AsString().String() == b.AsString().String()
	case a.IsArray():
		return a.AsArray() == b.AsArray()
	case a.IsDict():
		return a.AsDict() == b.AsDict()
	case a.IsFunc():
		return a.AsFunc() == b.AsFunc()
	default:
		return true // same tag outside the six known kinds; no payload to compare
	}
}
