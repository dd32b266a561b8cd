// Package statetree implements the per-land state tree: typed fields with
// broadcast/server-only sync policies, the canonical SnapshotValue
// intermediate representation, and the broadcast-projection snapshot used
// both for wire encoding and for the reevaluation hash input.
package statetree

import "sort"

// Kind is the tag of a SnapshotValue's active variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
)

// SnapshotValue is the canonical cross-codec intermediate value: a tagged
// sum over {null, bool, int64, float64, string, bytes, array, object}. Every
// encoder in internal/codec consumes and produces this shape exclusively —
// it never touches live tree nodes directly.
type SnapshotValue struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Bytes  []byte
	Array  []SnapshotValue
	Object map[string]SnapshotValue
}

func Null() SnapshotValue                { return SnapshotValue{Kind: KindNull} }
func Bool(v bool) SnapshotValue          { return SnapshotValue{Kind: KindBool, Bool: v} }
func Int(v int64) SnapshotValue          { return SnapshotValue{Kind: KindInt, Int: v} }
func Float(v float64) SnapshotValue      { return SnapshotValue{Kind: KindFloat, Float: v} }
func Str(v string) SnapshotValue         { return SnapshotValue{Kind: KindString, Str: v} }
func Bytes(v []byte) SnapshotValue       { return SnapshotValue{Kind: KindBytes, Bytes: v} }
func Array(v []SnapshotValue) SnapshotValue {
	return SnapshotValue{Kind: KindArray, Array: v}
}
func Object(v map[string]SnapshotValue) SnapshotValue {
	return SnapshotValue{Kind: KindObject, Object: v}
}

// Equal performs a deep structural comparison between two SnapshotValues.
func (v SnapshotValue) Equal(o SnapshotValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindBytes:
		if len(v.Bytes) != len(o.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != o.Bytes[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Object) != len(o.Object) {
			return false
		}
		for k, vv := range v.Object {
			ov, ok := o.Object[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone performs a deep copy so snapshots handed to an encoder task can
// never alias live tree state.
func (v SnapshotValue) Clone() SnapshotValue {
	switch v.Kind {
	case KindBytes:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return SnapshotValue{Kind: KindBytes, Bytes: b}
	case KindArray:
		arr := make([]SnapshotValue, len(v.Array))
		for i, e := range v.Array {
			arr[i] = e.Clone()
		}
		return SnapshotValue{Kind: KindArray, Array: arr}
	case KindObject:
		obj := make(map[string]SnapshotValue, len(v.Object))
		for k, e := range v.Object {
			obj[k] = e.Clone()
		}
		return SnapshotValue{Kind: KindObject, Object: obj}
	default:
		return v
	}
}

// SortedKeys returns the object's keys in sorted order, used everywhere the
// wire contract demands deterministic key order (the schema endpoint's
// "sortedKeys" format, and canonical hashing).
func (v SnapshotValue) SortedKeys() []string {
	if v.Kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.Object))
	for k := range v.Object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
