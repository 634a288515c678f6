package value

// ObjKind discriminates the three GC-tracked heap object kinds, one
// intrusive list per kind in each generation. FuncObj is deliberately
// not among them: functions live in the environment's registry for its
// whole lifetime and are never collected.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjArray
	ObjDict
	numObjKinds
)

// NumObjKinds is the number of distinct heap object kinds, i.e. the number
// of parallel lists the GC maintains per generation.
const NumObjKinds = int(numObjKinds)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjArray:
		return "array"
	case ObjDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Header is embedded in every GC-tracked object kind. It carries the sibling
// links used to thread the object into exactly one of: a frame's shallow
// list, the environment's tenured list, or the environment's garbage
// list, plus the two flags the GC needs: IsDeep (mirrors tenured-list
// membership) and IsMarked (scratch space used only during a deep
// collection).
type Header struct {
	kind       ObjKind
	IsDeep     bool
	IsMarked   bool
	prev, next Object
}

// NewHeader initializes a Header for an object of the given kind, shallow
// and unmarked (the state every newly allocated heap object starts in).
func NewHeader(kind ObjKind) Header { return Header{kind: kind} }

// Kind returns the object's heap-object kind.
func (h *Header) Kind() ObjKind { return h.kind }

// Object is implemented by every GC-tracked heap object kind
// (*StringObj, *ArrayObj, *DictObj). The GC operates generically over
// Object; it never needs to know the concrete kind except to pick the
// right per-kind list.
type Object interface {
	objHeader() *Header
	// Kind returns the receiver's object kind.
	Kind() ObjKind
	// Children appends every Value directly reachable from this object to
	// dst and returns the result. Used by deep GC's mark phase to recursively descend into array/dict contents; promotion
	// itself deliberately does NOT walk
	// children, only deep GC's mark phase does.
	Children(dst []Value) []Value
	// Deep and SetDeep expose the IsDeep flag through the interface, for
	// code that only has an Object, not a concrete
	// *StringObj/*ArrayObj/*DictObj.
	Deep() bool
	SetDeep(bool)
	// Marked and SetMark expose IsMarked, scratch state used only during a
	// deep collection.
	Marked() bool
	SetMark(bool)
	// Prev and Next expose the intrusive sibling links, for code that
	// needs to walk a list (e.g. promotion locating which list currently
	// owns an object) without being package value itself.
	Prev() Object
	Next() Object
}

// Prev and Next return the object's sibling links within whichever list it
// currently belongs to.
func (h *Header) Prev() Object { return h.prev }
func (h *Header) Next() Object { return h.next }

// SetPrev and SetNext are used exclusively by package gc to splice objects
// into and out of its intrusive lists.
func (h *Header) SetPrev(o Object) { h.prev = o }
func (h *Header) SetNext(o Object) { h.next = o }

func (h *Header) objHeader() *Header { return h }

// Deep reports whether the object is on the tenured list.
func (h *Header) Deep() bool { return h.IsDeep }

// SetDeep sets the IsDeep flag. Callers promoting an object into the
// tenured list must call SetDeep(true) in the same step that relinks it
// (package gc is the only caller).
func (h *Header) SetDeep(deep bool) { h.IsDeep = deep }

// Marked reports the scratch mark bit used only during a deep collection.
func (h *Header) Marked() bool { return h.IsMarked }

// SetMark sets the scratch mark bit.
func (h *Header) SetMark(marked bool) { h.IsMarked = marked }
