package value

import "fmt"

// ErrorState is the environment's error surface: a file name, line
// number, and message, meaningful only after a fallible operation has
// returned failure.
type ErrorState struct {
	File    string
	Line    int
	Message string
}

// Environment is the one-per-embedding runtime state: the top of the
// frame stack, global bindings, the function registry, a running
// heap-byte counter, the tenured and garbage generation lists, and the
// error state.
//
// The JIT never reaches into Environment's fields directly (it is
// handed an opaque pointer and calls back into Go helpers for anything
// beyond the Frame/tmpvar contract), so no field ordering constraint
// applies here. See DESIGN.md.
type Environment struct {
	Top     *Frame
	Globals BindingList

	Functions map[string]*FuncObj

	HeapBytes int64

	Tenured ObjList
	Garbage ObjList

	Err ErrorState
}

// NewEnvironment creates an empty, ready-to-use Environment.
func NewEnvironment() *Environment {
	return &Environment{Functions: make(map[string]*FuncObj)}
}

// PushFrame pushes fr onto the frame stack, making it the active frame.
func (e *Environment) PushFrame(fr *Frame) {
	fr.Next = e.Top
	e.Top = fr
}

// PopFrame pops and returns the active frame. It panics if there is none,
// which would indicate an interpreter/JIT bug, not a user-triggerable
// error.
func (e *Environment) PopFrame() *Frame {
	fr := e.Top
	e.Top = fr.Next
	fr.Next = nil
	return fr
}

// SetError records a run-time or load-time failure.
func (e *Environment) SetError(file string, line int, format string, args ...interface{}) {
	e.Err = ErrorState{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// ErrorFile, ErrorLine and ErrorMessage are the three separate accessors
// of the error surface (file, line, message);
// kept as three methods, rather than one struct getter, for drop-in
// familiarity for hosts ported from the C API.
func (e *Environment) ErrorFile() string    { return e.Err.File }
func (e *Environment) ErrorLine() int       { return e.Err.Line }
func (e *Environment) ErrorMessage() string { return e.Err.Message }
