//go:build 386

package jit

import "unsafe"

// callNative is implemented in asm_386.s: it pushes env/frame onto the
// stack cdecl-style, matching jit/x86's Prologue ([ebp+8]=env,
// [ebp+12]=frame), and calls entry.
func callNative(entry uintptr, env, frame unsafe.Pointer) bool
