// Package gc implements the language's two-generation collector: a
// shallow (nursery) generation tied to call frames and a deep (tenured)
// generation reclaimed only by mark-and-sweep. The layer exists
// independently of Go's own collector so that heap usage returning to
// zero on frame teardown, promotion on global stores, and tenured
// survivors after a deep collection are all observable behaviors of the
// language runtime, not accidents of the host.
package gc

import "github.com/tamakomori/linguine/lang/value"

// approxSize estimates the number of heap bytes an object occupies, for
// the running heap-byte counter and the host API's heap-usage query.
// It is necessarily approximate (Go's runtime does not
// expose per-object allocation sizes a malloc-backed allocator could
// report exactly) but is stable and monotonic in the
// same way: it grows when a container grows and shrinks only when the
// object is freed.
func approxSize(o value.Object) int64 {
	const headerBytes = 32
	switch o := o.(type) {
	case *value.StringObj:
		return headerBytes + int64(cap(o.Bytes))
	case *value.ArrayObj:
		return headerBytes + int64(cap(o.Elems))*value.ValueSize
	case *value.DictObj:
		return headerBytes + int64(cap(o.Keys))*24 + int64(cap(o.Values))*value.ValueSize
	default:
		return headerBytes
	}
}

// HeapUsage returns the environment's current running heap-byte count.
func HeapUsage(env *value.Environment) int64 { return env.HeapBytes }
