//go:build mips64 || mips64le

package jit

import "unsafe"

// callNative is implemented in asm_mips64x.s: it loads env/frame into
// $4/$5 (a0/a1, the n64 ABI's first two argument registers), matching
// jit/mips64's Prologue, and jumps-and-links to entry.
func callNative(entry uintptr, env, frame unsafe.Pointer) bool
