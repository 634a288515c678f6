package runtime

import (
	"github.com/pkg/errors"

	"github.com/tamakomori/linguine/lang/ast"
	"github.com/tamakomori/linguine/lang/bytecode"
	"github.com/tamakomori/linguine/lang/hir"
	"github.com/tamakomori/linguine/lang/jit"
	"github.com/tamakomori/linguine/lang/lir"
)

// Parser is the external lexer/parser collaborator; RegisterSource
// accepts any implementation.
type Parser interface {
	Parse(file string, src []byte) (*ast.Program, error)
}

// RegisterSource parses src with p and registers every function it
// declares. It is observably
// equivalent to registering the bytecode file produced by BytecodeFile
// from the same program.
func (h *Host) RegisterSource(p Parser, file string, src []byte, optimize bool) error {
	prog, err := p.Parse(file, src)
	if err != nil {
		h.Env.SetError(file, 0, "%s", err)
		return errors.Wrapf(err, "linguine: parsing %s", file)
	}
	return h.RegisterProgram(prog, optimize)
}

// RegisterProgram runs the AST → HIR → LIR pipeline over every function
// in prog and registers the results. Anonymous function literals hoisted
// by the HIR builder are compiled and registered under their
// $anon.<file>.<counter> names alongside their enclosing function.
func (h *Host) RegisterProgram(prog *ast.Program, optimize bool) error {
	funcs, err := hir.BuildProgram(prog)
	if err != nil {
		if herr, ok := err.(*hir.Error); ok {
			h.Env.SetError(herr.File, herr.Line, "%s", herr.Message)
		}
		return errors.Wrapf(err, "linguine: compiling %s", prog.File)
	}

	for _, hf := range funcs {
		lf, err := lir.Lower(hf, optimize)
		if err != nil {
			if lerr, ok := err.(*lir.Error); ok {
				h.Env.SetError(lerr.File, lerr.Line, "%s", lerr.Message)
			}
			return errors.Wrapf(err, "linguine: lowering %s", hf.Block(0).Name)
		}
		h.RegisterBytecode(lf.Name, lf.File, lf.Params, lf.Bytecode, lf.TmpVarSize)
	}
	return nil
}

// RegisterBytecodeFile loads a bytecode file written by BytecodeFile and
// registers every function in it.
func (h *Host) RegisterBytecodeFile(data []byte) error {
	f, err := bytecode.Read(data)
	if err != nil {
		h.Env.SetError("", 0, "%s", err)
		return err
	}
	for _, fn := range f.Functions {
		h.RegisterBytecode(fn.Name, f.Source, fn.Params, fn.Bytecode, fn.TmpVarSize)
	}
	return nil
}

// BytecodeFile serializes the named registered functions into the
// on-disk bytecode format, in the given order. Loading the result into a
// fresh Host reproduces the same observable behavior as registering the
// program it was serialized from.
func (h *Host) BytecodeFile(source string, names ...string) ([]byte, error) {
	f := &bytecode.File{Source: source}
	for _, name := range names {
		fn, ok := h.Env.Functions[name]
		if !ok {
			return nil, errors.Errorf("linguine: unknown function %q", name)
		}
		if !fn.IsBytecode() {
			return nil, errors.Errorf("linguine: function %q has no bytecode", name)
		}
		f.Functions = append(f.Functions, bytecode.Func{
			Name:       fn.Name,
			Params:     fn.Params,
			TmpVarSize: fn.TmpVarSize,
			Bytecode:   fn.Bytecode,
		})
	}
	return bytecode.Write(f), nil
}

// Compile translates the named function to native machine code for the
// host architecture. On failure the function stays
// interpreter-only; that is a per-function degradation,
// not a host-visible error state, so callers that treat native execution
// as optional can ignore the returned error.
func (h *Host) Compile(name string) error {
	fn, ok := h.Env.Functions[name]
	if !ok {
		return errors.Errorf("linguine: unknown function %q", name)
	}
	return jit.Compile(h.Env, fn)
}
