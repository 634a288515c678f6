package value

// Binding is a single (name, value) pair. Globals and locals are each a
// singly linked list of Bindings: globals live in
// the Environment for its lifetime, locals live in the current call
// Frame. A linked list, rather than a map, is appropriate given the
// small number of bindings typical programs declare (the same reasoning
// behind DictObj's linear lookup).
type Binding struct {
	Name  string
	Value Value
	Next  *Binding
}

// BindingList is the head of a Binding chain, used for both globals and
// locals.
type BindingList struct {
	head *Binding
}

// Lookup searches the list for name, returning its value and whether it
// was found.
func (l *BindingList) Lookup(name string) (Value, bool) {
	for b := l.head; b != nil; b = b.Next {
		if b.Name == name {
			return b.Value, true
		}
	}
	return Value{}, false
}

// Find returns the Binding for name, or nil if absent, so callers can
// mutate Value in place without a second list walk.
func (l *BindingList) Find(name string) *Binding {
	for b := l.head; b != nil; b = b.Next {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Set updates name's value if bound, or else prepends a new Binding.
// It reports true if a new Binding was created.
func (l *BindingList) Set(name string, v Value) (created bool) {
	if b := l.Find(name); b != nil {
		b.Value = v
		return false
	}
	l.head = &Binding{Name: name, Value: v, Next: l.head}
	return true
}

// Each calls fn for every Binding in the list, in insertion-reverse (most
// recently added first) order.
func (l *BindingList) Each(fn func(*Binding)) {
	for b := l.head; b != nil; b = b.Next {
		fn(b)
	}
}
