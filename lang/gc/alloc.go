package gc

import "github.com/tamakomori/linguine/lang/value"

// track links a freshly constructed object into the correct generation:
// the active frame's shallow list, or the environment's tenured list
// directly if no frame is active (host-initiated allocation). It also
// bumps the running heap-byte counter.
func track(env *value.Environment, o value.Object) {
	if fr := env.Top; fr != nil {
		value.Push(&fr.Shallow, o)
	} else {
		value.Push(&env.Tenured, o)
		o.SetDeep(true)
	}
	env.HeapBytes += approxSize(o)
}

// AllocString allocates a new StringObj with the given contents, shallow
// in the active frame (or tenured if none is active).
func AllocString(env *value.Environment, s string) *value.StringObj {
	o := value.NewString(s)
	track(env, o)
	return o
}

// AllocStringBytes is like AllocString but takes ownership of b.
func AllocStringBytes(env *value.Environment, b []byte) *value.StringObj {
	o := value.NewStringBytes(b)
	track(env, o)
	return o
}

// AllocArray allocates a new, empty ArrayObj.
func AllocArray(env *value.Environment) *value.ArrayObj {
	o := value.NewArray()
	track(env, o)
	return o
}

// AllocArrayFrom allocates a new ArrayObj containing a copy of elems.
func AllocArrayFrom(env *value.Environment, elems []value.Value) *value.ArrayObj {
	o := value.NewArrayFrom(elems)
	track(env, o)
	return o
}

// AllocDict allocates a new, empty DictObj.
func AllocDict(env *value.Environment) *value.DictObj {
	o := value.NewDict()
	track(env, o)
	return o
}
