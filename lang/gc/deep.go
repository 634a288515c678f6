package gc

import "github.com/tamakomori/linguine/lang/value"

// DeepGC runs a full mark-and-sweep collection of the tenured
// generation. It first runs ShallowGC against every live
// frame (the nursery is always swept before scanning roots, so that
// nothing transiently shallow is mistaken for garbage or for a root),
// then clears every tenured object's mark bit, marks everything
// transitively reachable from the roots (globals and every live frame's
// tmpvar slots and locals), and finally unlinks every unmarked tenured
// object. Function objects are not the collector's concern: they live
// in the environment's registry and hold no collectable Values.
func DeepGC(env *value.Environment) {
	for fr := env.Top; fr != nil; fr = fr.Next {
		ShallowGC(env, fr)
	}

	for k := 0; k < value.NumObjKinds; k++ {
		value.Each(&env.Tenured, value.ObjKind(k), func(o value.Object) {
			o.SetMark(false)
		})
	}

	var stack []value.Object
	mark := func(v value.Value) {
		if o := v.Object(); o != nil && o.Deep() && !o.Marked() {
			o.SetMark(true)
			stack = append(stack, o)
		}
	}

	env.Globals.Each(func(b *value.Binding) { mark(b.Value) })
	for fr := env.Top; fr != nil; fr = fr.Next {
		for _, v := range fr.Tmpvar {
			mark(v)
		}
		fr.Locals.Each(func(b *value.Binding) { mark(b.Value) })
	}

	var buf []value.Value
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		buf = o.Children(buf[:0])
		for _, v := range buf {
			mark(v)
		}
	}

	sweep(env)
}

// sweep unlinks every tenured object whose mark bit is still false after
// the mark phase, across every kind's list.
func sweep(env *value.Environment) {
	for k := 0; k < value.NumObjKinds; k++ {
		var dead []value.Object
		value.Each(&env.Tenured, value.ObjKind(k), func(o value.Object) {
			if !o.Marked() {
				dead = append(dead, o)
			}
		})
		for _, o := range dead {
			value.Unlink(&env.Tenured, o)
			o.SetDeep(false)
		}
	}
	env.HeapBytes = recomputeHeapBytes(env)
}
