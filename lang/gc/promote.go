package gc

import "github.com/tamakomori/linguine/lang/value"

// Promote moves o into env's tenured list if it is not already there:
// storing a shallow value into a global or into an already-tenured
// container promotes the stored value itself.
// It does not walk o's children — storing a shallow array into a global
// only tenures the array, not its elements. An interior object that is
// still shallow stays on its frame's shallow list: deep GC's mark phase
// walks Children() but marks only tenured objects (see deep.go), so such
// an object is reclaimed by its frame's next shallow collection unless it
// is itself stored through a global or a tenured container first.
func Promote(env *value.Environment, o value.Object) {
	if o.Deep() {
		return
	}
	if fr := ownerFrame(env, o); fr != nil {
		value.Move(&env.Tenured, &fr.Shallow, o)
	} else {
		// Not found shallow in any live frame: a shallow collection of
		// its frame has already run (ShallowGC empties the garbage list
		// as soon as it fills it), so o is on no list and keeps only
		// stale sibling links, which Push overwrites.
		value.Push(&env.Tenured, o)
	}
	o.SetDeep(true)
}

// ownerFrame returns the innermost frame whose shallow list currently
// holds o, or nil if none does.
func ownerFrame(env *value.Environment, o value.Object) *value.Frame {
	k := o.Kind()
	for fr := env.Top; fr != nil; fr = fr.Next {
		for cur := (&fr.Shallow)[k]; cur != nil; cur = cur.Next() {
			if cur == o {
				return fr
			}
		}
	}
	return nil
}

// PromoteValue promotes v's underlying heap object, if v holds one.
func PromoteValue(env *value.Environment, v value.Value) {
	if o := v.Object(); o != nil {
		Promote(env, o)
	}
}
