package interp

import "github.com/tamakomori/linguine/lang/value"

// Hooks are the optional debugger callbacks. Go has no compile-time
// conditional compilation to inline them away, so absence is a nil
// field: Run checks each field where it would call it, so the no-hook
// path costs a nil check per hook per instruction.
type Hooks struct {
	// Before is called immediately before decoding the instruction at pc.
	Before func(fr *value.Frame, pc int)
	// After is called immediately after an instruction completes
	// successfully.
	After func(fr *value.Frame, pc int)
	// OnError is called when an opcode helper fails, before Run returns
	// false.
	OnError func(fr *value.Frame, pc int, err error)
}
