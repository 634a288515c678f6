package runtime

import (
	"github.com/tamakomori/linguine/lang/gc"
	"github.com/tamakomori/linguine/lang/value"
)

// NewString, NewArray and NewDict construct heap values in the Host's
// environment. Int and Float need no allocation, so callers use
// value.Int/value.Float directly.
func (h *Host) NewString(s string) value.Value { return value.String(gc.AllocString(h.Env, s)) }
func (h *Host) NewArray() value.Value           { return value.Array(gc.AllocArray(h.Env)) }
func (h *Host) NewDict() value.Value            { return value.Dict(gc.AllocDict(h.Env)) }

// ArraySet assigns arr[i] = v, promoting v's object if arr is itself
// tenured or has no owning frame. It
// reports false if i is out of range.
func (h *Host) ArraySet(arr *value.ArrayObj, i int, v value.Value) bool {
	if !arr.Set(i, v) {
		return false
	}
	if arr.Deep() {
		gc.PromoteValue(h.Env, v)
	}
	return true
}

// ArrayAppend appends v to arr, promoting v's object under the same rule
// as ArraySet.
func (h *Host) ArrayAppend(arr *value.ArrayObj, v value.Value) {
	arr.Append(v)
	if arr.Deep() {
		gc.PromoteValue(h.Env, v)
	}
}

// ArrayResize grows or shrinks arr to exactly n elements.
func (h *Host) ArrayResize(arr *value.ArrayObj, n int) { arr.Resize(n) }

// ArrayRemove deletes the element at i.
func (h *Host) ArrayRemove(arr *value.ArrayObj, i int) bool { return arr.Remove(i) }

// DictSet assigns dict[key] = v, promoting v's object under the same
// tenured-destination rule as ArraySet.
func (h *Host) DictSet(dict *value.DictObj, key string, v value.Value) {
	dict.Set(key, v)
	if dict.Deep() {
		gc.PromoteValue(h.Env, v)
	}
}

// DictUnset removes key from dict, reporting whether it was present.
func (h *Host) DictUnset(dict *value.DictObj, key string) bool { return dict.Unset(key) }
