package value

// ObjList holds one intrusive doubly linked list head per heap-object
// kind. A Frame's shallow lists and an Environment's tenured and garbage
// lists are all ObjLists.
type ObjList [NumObjKinds]Object

// Push links o onto the front of its kind's list. o must not already
// belong to a list.
func Push(l *ObjList, o Object) {
	h := o.objHeader()
	k := h.kind
	h.prev = nil
	h.next = l[k]
	if l[k] != nil {
		l[k].objHeader().prev = o
	}
	l[k] = o
}

// Unlink removes o from l. It is a no-op if o is not linked into l (the
// caller is expected to know which list o belongs to; every live object
// is in exactly one list).
func Unlink(l *ObjList, o Object) {
	h := o.objHeader()
	k := h.kind
	if h.prev != nil {
		h.prev.objHeader().next = h.next
	} else if l[k] == o {
		l[k] = h.next
	}
	if h.next != nil {
		h.next.objHeader().prev = h.prev
	}
	h.prev, h.next = nil, nil
}

// Move unlinks o from src and pushes it onto dst, used by promotion to
// relink an object from a frame's shallow list onto the tenured list.
func Move(dst, src *ObjList, o Object) {
	Unlink(src, o)
	Push(dst, o)
}

// DrainInto appends every list in src onto the corresponding list in dst
// and empties src, preserving relative order. Used when a frame exits:
// its shallow lists are spliced onto the environment's garbage lists.
func DrainInto(dst, src *ObjList) {
	for k := 0; k < NumObjKinds; k++ {
		if src[k] == nil {
			continue
		}
		tail := src[k]
		for tail.objHeader().next != nil {
			tail = tail.objHeader().next
		}
		tail.objHeader().next = dst[k]
		if dst[k] != nil {
			dst[k].objHeader().prev = tail
		}
		dst[k] = src[k]
		src[k] = nil
	}
}

// Each calls fn for every object of the given kind currently in l.
func Each(l *ObjList, kind ObjKind, fn func(Object)) {
	for o := l[kind]; o != nil; {
		next := o.objHeader().next
		fn(o)
		o = next
	}
}

// Clear empties every per-kind list in l. The objects themselves are not
// explicitly deallocated (Go has no manual free); dropping every
// reference to them here is what makes them eligible for collection by
// the host Go runtime's own garbage collector, which is how "freeing"
// the garbage list is expressed here (see DESIGN.md).
func Clear(l *ObjList) {
	for k := range l {
		l[k] = nil
	}
}

// Empty reports whether every per-kind list in l has no entries.
func Empty(l *ObjList) bool {
	for _, o := range l {
		if o != nil {
			return false
		}
	}
	return true
}
