package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// opcodeMsgpackEncoder is the one path-hash-only encoder (MsgPack always
// carries u32 path hashes, never literal strings) and the one encoder
// transport's parallel batch controller must never fan out.
type opcodeMsgpackEncoder struct{}

func (opcodeMsgpackEncoder) Kind() Kind { return OpcodeMessagePack }

func (opcodeMsgpackEncoder) EncodeFirstSync(snapshot statetree.SnapshotValue) ([]byte, error) {
	return msgpack.Marshal(opcodeMessage{Kind: "firstSync", Tree: toNative(snapshot)})
}

func (opcodeMsgpackEncoder) EncodeDiff(ops []dirty.Opcode, table *ids.PathHashTable) ([]byte, error) {
	tuples := make([]interface{}, 0, len(ops))
	for _, op := range ops {
		tuple, err := buildTuple(op, true, table)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tuple)
	}
	return msgpack.Marshal(opcodeMessage{Kind: "diff", Ops: tuples})
}
