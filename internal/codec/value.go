package codec

import "github.com/rawblock/landkeeper/internal/statetree"

// JSONValue exposes toNative for callers outside this package that need to
// marshal a SnapshotValue alongside their own envelope fields (internal/
// transport's server-event frame, for instance) without duplicating the
// conversion.
func JSONValue(v statetree.SnapshotValue) interface{} { return toNative(v) }

// SnapshotValueFromJSON is the inverse of JSONValue: it converts a value
// already decoded by encoding/json into interface{} (the shape an inbound
// action payload arrives in) into a SnapshotValue a Tree can consume.
// encoding/json has no int/float distinction, so a float64 with no
// fractional part decodes as KindInt — every action payload in this
// codebase deals in whole-number game units, never fractional ones.
func SnapshotValueFromJSON(v interface{}) statetree.SnapshotValue {
	switch t := v.(type) {
	case nil:
		return statetree.Null()
	case bool:
		return statetree.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return statetree.Int(int64(t))
		}
		return statetree.Float(t)
	case string:
		return statetree.Str(t)
	case []interface{}:
		out := make([]statetree.SnapshotValue, len(t))
		for i, e := range t {
			out[i] = SnapshotValueFromJSON(e)
		}
		return statetree.Array(out)
	case map[string]interface{}:
		out := make(map[string]statetree.SnapshotValue, len(t))
		for k, e := range t {
			out[k] = SnapshotValueFromJSON(e)
		}
		return statetree.Object(out)
	}
	return statetree.Null()
}

// toNative converts a SnapshotValue into the plain Go value both
// encoding/json and vmihailenco/msgpack marshal natively, so the two
// codecs never need separate conversion code.
func toNative(v statetree.SnapshotValue) interface{} {
	switch v.Kind {
	case statetree.KindNull:
		return nil
	case statetree.KindBool:
		return v.Bool
	case statetree.KindInt:
		return v.Int
	case statetree.KindFloat:
		return v.Float
	case statetree.KindString:
		return v.Str
	case statetree.KindBytes:
		return v.Bytes
	case statetree.KindArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = toNative(e)
		}
		return out
	case statetree.KindObject:
		out := make(map[string]interface{}, len(v.Object))
		for _, k := range v.SortedKeys() {
			out[k] = toNative(v.Object[k])
		}
		return out
	}
	return nil
}
