package value

// StringObj is the heap representation of a String value: a byte
// buffer. Go's slice already carries its own length and capacity, so
// Bytes never contains a significant trailing NUL; len(Bytes) is the
// string's length and cap(Bytes) is the growth reserve.
type StringObj struct {
	Header
	Bytes []byte
}

var _ Object = (*StringObj)(nil)

// NewString allocates a new, shallow StringObj with a copy of s.
func NewString(s string) *StringObj {
	return &StringObj{Header: NewHeader(ObjString), Bytes: []byte(s)}
}

// NewStringBytes allocates a new, shallow StringObj taking ownership of b
// (the caller must not retain b after the call).
func NewStringBytes(b []byte) *StringObj {
	return &StringObj{Header: NewHeader(ObjString), Bytes: b}
}

func (s *StringObj) Children(dst []Value) []Value { return dst } // strings hold no Values

func (s *StringObj) String() string { return string(s.Bytes) }

// Len returns the string's length in bytes.
func (s *StringObj) Len() int { return len(s.Bytes) }
