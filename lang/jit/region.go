package jit

import "sync"

// CodeRegion is the process-wide, monotonically-growing native code
// area: one region, sized at a fixed JITCodeMax, allocated lazily on the
// first JIT invocation, its cursor advancing monotonically across
// functions. There is no reclamation.
//
// It is process-wide rather than per-Environment: one mapping per
// process regardless of environment count, which is acceptable for
// typical embedded use and considerably simpler than reference-counting
// executable pages across environments.
type CodeRegion struct {
	mu     sync.Mutex
	mem     []byte // the mapped region; len == cap == JITCodeMax once allocated
	cursor  int
	writable bool // true while mem is mapped PROT_READ|PROT_WRITE
}

var globalRegion = &CodeRegion{}

// Commit appends code to the region, remaps it executable, and flushes
// the instruction cache over the newly written range. It returns the
// base address the new function's code starts at.
//
// The code region is mapped writable only during emission and
// executable otherwise; instruction-cache invalidation runs on the
// emitted range before execution, and the runtime never writes to an
// executable mapping. Commit honors this by
// toggling the whole region back to writable before copying in new code,
// then back to read+execute before returning.
func (r *CodeRegion) Commit(code []byte) (uintptr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mem == nil {
		mem, err := mmapRegion(JITCodeMax)
		if err != nil {
			return 0, err
		}
		r.mem = mem
		r.writable = true
	}
	if r.cursor+len(code) > len(r.mem) {
		return 0, errRegionExhausted
	}
	if !r.writable {
		if err := mprotectRW(r.mem); err != nil {
			return 0, err
		}
		r.writable = true
	}

	base := r.cursor
	copy(r.mem[base:], code)
	r.cursor += len(code)

	addr, err := mprotectRX(r.mem)
	if err != nil {
		return 0, err
	}
	r.writable = false

	flushInstructionCache(addr+uintptr(base), len(code))
	return addr + uintptr(base), nil
}

// Free is a documented no-op: code-region memory is never reclaimed, a
// known limitation of the one-region-forever memory policy. It exists
// only so callers have somewhere to record the intent to free.
func (r *CodeRegion) Free(base uintptr, size int) {
	// Intentionally empty; see the type's doc comment.
}

var errRegionExhausted = regionExhaustedError{}

type regionExhaustedError struct{}

func (regionExhaustedError) Error() string {
	return "jit: code region exhausted (JIT_CODE_MAX reached)"
}
