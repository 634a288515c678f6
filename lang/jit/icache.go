//go:build !(linux && arm)

package jit

// flushInstructionCache invalidates the instruction cache over
// [addr, addr+size) after new code is written into the executable
// region.
//
// x86/x86_64 keep instruction and data caches coherent for
// self-modifying code at the ISA level (Intel SDM Vol. 3A §11.6, AMD APM
// Vol. 2 §7.6): no explicit flush instruction is required there, so this
// is a genuine no-op on those two targets. On arm64/mips64/ppc32/ppc64 a
// real flush needs a platform syscall or a dedicated cache-maintenance
// instruction sequence (DC CVAU/IC IVAU on arm64, cacheflush on
// mips/ppc); no flush is attempted on those GOOS/GOARCH
// combinations linux/arm doesn't cover, and documents the gap rather than
// emitting an unverified flush sequence it can never exercise. See
// DESIGN.md.
func flushInstructionCache(addr uintptr, size int) {}
