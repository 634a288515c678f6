//go:build arm64

package jit

import "unsafe"

// callNative is implemented in asm_arm64.s: it loads env/frame into X0/X1
// (AAPCS64's first two argument registers), the registers jit/arm64's
// Prologue moves into its reserved X19/X20, and branches with link to
// entry.
func callNative(entry uintptr, env, frame unsafe.Pointer) bool
