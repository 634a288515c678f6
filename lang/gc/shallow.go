package gc

import "github.com/tamakomori/linguine/lang/value"

// ShallowGC reclaims every object still shallow in fr: its three per-kind
// lists are spliced onto env's garbage lists, then every garbage list is
// cleared.
//
// Known gap, preserved deliberately: objects from unrelated frames
// that happen to still be sitting in the garbage list when this runs are
// freed too: the garbage list is shared across the whole environment, not
// scoped to one frame's teardown, so back-to-back calls can delay
// freeing until the outer frame exits. Kept as documented behavior
// rather than fixed.
func ShallowGC(env *value.Environment, fr *value.Frame) {
	value.DrainInto(&env.Garbage, &fr.Shallow)
	value.Clear(&env.Garbage)
	env.HeapBytes = recomputeHeapBytes(env)
}

// recomputeHeapBytes is a cheap approximation: since approxSize has no
// durable per-object record once an object is dropped, ShallowGC cannot
// subtract exactly what it freed without re-walking every remaining list.
// It does so here; this is O(live objects), which is acceptable since it
// only runs when a collection runs (ShallowGC or DeepGC's sweep), not on
// every allocation.
func recomputeHeapBytes(env *value.Environment) int64 {
	var total int64
	for fr := env.Top; fr != nil; fr = fr.Next {
		for k := 0; k < value.NumObjKinds; k++ {
			value.Each(&fr.Shallow, value.ObjKind(k), func(o value.Object) {
				total += approxSize(o)
			})
		}
	}
	for k := 0; k < value.NumObjKinds; k++ {
		value.Each(&env.Tenured, value.ObjKind(k), func(o value.Object) {
			total += approxSize(o)
		})
	}
	return total
}
