package value

// DictObj is the heap representation of a Dict value: parallel key/value
// tables searched linearly (fine for the small maps this language
// produces), with insertion preserving first-seen order and unset
// shifting subsequent entries down.
type DictObj struct {
	Header
	Keys   []string
	Values []Value
}

var _ Object = (*DictObj)(nil)

// NewDict allocates a new, shallow, empty DictObj.
func NewDict() *DictObj { return &DictObj{Header: NewHeader(ObjDict)} }

func (d *DictObj) Children(dst []Value) []Value { return append(dst, d.Values...) }

func (d *DictObj) Len() int { return len(d.Keys) }

// indexOf returns the index of key in d, or -1.
func (d *DictObj) indexOf(key string) int {
	for i, k := range d.Keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Get returns the value for key, and false if key is absent.
func (d *DictObj) Get(key string) (Value, bool) {
	if i := d.indexOf(key); i >= 0 {
		return d.Values[i], true
	}
	return Value{}, false
}

// Set inserts or updates the value for key, appending it after the last
// existing entry on first insertion (so iteration order matches insertion
// order).
func (d *DictObj) Set(key string, v Value) {
	if i := d.indexOf(key); i >= 0 {
		d.Values[i] = v
		return
	}
	d.Keys = append(d.Keys, key)
	d.Values = append(d.Values, v)
}

// Unset removes key, if present, shifting subsequent entries down to keep
// the parallel tables compact and order-preserving.
func (d *DictObj) Unset(key string) bool {
	i := d.indexOf(key)
	if i < 0 {
		return false
	}
	d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
	d.Values = append(d.Values[:i], d.Values[i+1:]...)
	return true
}

// KeyAt and ValueAt back GETDICTKEYBYINDEX/GETDICTVALBYINDEX, used by the
// LIR lowering of dict-iteration for loops.
func (d *DictObj) KeyAt(i int) (string, bool) {
	if i < 0 || i >= len(d.Keys) {
		return "", false
	}
	return d.Keys[i], true
}

func (d *DictObj) ValueAt(i int) (Value, bool) {
	if i < 0 || i >= len(d.Values) {
		return Value{}, false
	}
	return d.Values[i], true
}
