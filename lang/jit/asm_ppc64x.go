//go:build ppc64le

package jit

import "unsafe"

// callNative is implemented in asm_ppc64x.s: it loads env/frame into
// R3/R4 (ELFv2's first two argument registers), matching jit/ppc64's
// Prologue, and branches with link to entry. Only ppc64le (ELFv2,
// direct function addresses) is wired; big-endian ppc64 (ELFv1) needs a
// three-word function descriptor this single-pass emitter does not
// build and is left unsupported (see DESIGN.md).
func callNative(entry uintptr, env, frame unsafe.Pointer) bool
