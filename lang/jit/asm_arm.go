//go:build arm

package jit

import "unsafe"

// callNative is implemented in asm_arm.s: it loads env/frame into R0/R1
// (AAPCS's first two argument registers), matching jit/arm32's Prologue,
// and branches with link to entry.
func callNative(entry uintptr, env, frame unsafe.Pointer) bool
