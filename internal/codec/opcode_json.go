package codec

import (
	"encoding/json"

	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

type opcodeMessage struct {
	Kind string        `json:"kind" msgpack:"kind"`
	Tree interface{}   `json:"tree,omitempty" msgpack:"tree,omitempty"`
	Ops  []interface{} `json:"ops,omitempty" msgpack:"ops,omitempty"`
}

// opcodeJSONEncoder implements both opcodeJsonArrayLegacy (pathHashed=false,
// string paths) and opcodeJsonArray (pathHashed=true, u32 path hashes). They
// share every byte of framing logic; only the path representation differs.
type opcodeJSONEncoder struct {
	pathHashed bool
}

func (e opcodeJSONEncoder) Kind() Kind {
	if e.pathHashed {
		return OpcodeJSONArray
	}
	return OpcodeJSONArrayLegacy
}

func (e opcodeJSONEncoder) EncodeFirstSync(snapshot statetree.SnapshotValue) ([]byte, error) {
	return json.Marshal(opcodeMessage{Kind: "firstSync", Tree: toNative(snapshot)})
}

func (e opcodeJSONEncoder) EncodeDiff(ops []dirty.Opcode, table *ids.PathHashTable) ([]byte, error) {
	tuples := make([]interface{}, 0, len(ops))
	for _, op := range ops {
		tuple, err := buildTuple(op, e.pathHashed, table)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tuple)
	}
	return json.Marshal(opcodeMessage{Kind: "diff", Ops: tuples})
}

// buildTuple renders one opcode as the wire tuple
// [op_code, path, key?, value?]. For SET/MUTATE the tuple is
// [op_code, path, value]; for DEL, [op_code, path]; for INS,
// [op_code, path, key_or_index, value] where key_or_index is a number for
// array inserts and a string for map inserts. An INS path is the container's
// literal path, or, when hashed, the hash of the element template (the
// container's template plus "{*}" or "[*]").
func buildTuple(op dirty.Opcode, pathHashed bool, table *ids.PathHashTable) ([]interface{}, error) {
	target := op.Path
	if pathHashed && op.Op == dirty.OpInsert {
		if op.Key.IsString {
			target = op.Path.Append(ids.KeySeg(op.Key.Str))
		} else {
			target = op.Path.Append(ids.IndexSeg(op.Key.Index))
		}
	}
	path, err := resolveContainerPath(target, pathHashed, table)
	if err != nil {
		return nil, err
	}
	switch op.Op {
	case dirty.OpSet, dirty.OpMutate:
		return []interface{}{int(wireOpCode(op.Op)), path, toNative(op.Value)}, nil
	case dirty.OpDelete:
		return []interface{}{int(OpCodeDel), path}, nil
	case dirty.OpInsert:
		var key interface{}
		if op.Key.IsString {
			key = op.Key.Str
		} else {
			key = op.Key.Index
		}
		return []interface{}{int(OpCodeIns), path, key, toNative(op.Value)}, nil
	}
	return []interface{}{int(OpCodeSet), path}, nil
}
