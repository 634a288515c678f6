package jit

import (
	"unsafe"

	"github.com/tamakomori/linguine/lang/value"
)

// makeNativeEntry wraps a committed code region's base address as a
// value.NativeEntry, closing over base so every call goes through
// callNative — the small per-architecture assembly trampoline (see
// asm_<arch>.s) that bridges a Go call to the platform C ABI the
// generated code's Prologue/Epilogue was
// written against. Go cannot call an arbitrary native address directly:
// its own internal calling convention differs from the platform C ABI
// (register assignment and all), so every arch needs this one fixed
// hand-written stub, and only this one — the JIT-generated code itself
// never needs to know anything about Go's ABI.
func makeNativeEntry(base uintptr, size int) (value.NativeEntry, error) {
	return func(env, frame unsafe.Pointer) bool {
		return callNative(base, env, frame)
	}, nil
}
