// Package token defines the source-position encoding shared by the AST,
// HIR, LIR, and runtime error state. File/line pairs are how every
// compile-time and run-time error in Linguine is reported back to the host.
package token

import "fmt"

// Pos is a 1-based line number within a named source file. Column
// information is not tracked: the runtime's error surface is file+line
// only, and every diagnostic in this codebase follows that granularity.
type Pos struct {
	File string
	Line int
}

// NoPos is the zero value, used where a position is not yet known (e.g. for
// host-initiated allocations that happen outside any bytecode execution).
var NoPos = Pos{}

// Valid reports whether p carries real position information.
func (p Pos) Valid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.Valid() {
		return "<unknown>"
	}
	if p.File == "" {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}
