//go:build amd64

package jit

import "unsafe"

// callNative is implemented in asm_amd64.s: it loads env/frame into the
// SysV AMD64 argument registers (RDI, RSI) jit/x86_64's Prologue expects
// and calls entry, the committed code region's address for this
// function.
func callNative(entry uintptr, env, frame unsafe.Pointer) bool
