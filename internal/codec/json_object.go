package codec

import (
	"encoding/json"

	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// jsonObjectMessage is the wire shape for the jsonObject encoder: a full
// tree on firstSync, and a full tree again on every diff — this encoder
// never sends opcodes, only whole-snapshot refreshes.
type jsonObjectMessage struct {
	Kind string      `json:"kind"`
	Tree interface{} `json:"tree"`
}

type jsonObjectEncoder struct{}

func (jsonObjectEncoder) Kind() Kind { return JSONObject }

func (jsonObjectEncoder) EncodeFirstSync(snapshot statetree.SnapshotValue) ([]byte, error) {
	return json.Marshal(jsonObjectMessage{Kind: "firstSync", Tree: toNative(snapshot)})
}

// EncodeDiff for jsonObject ignores the opcode list's structure and instead
// requires the caller to have folded the post-diff snapshot into the first
// opcode's Value via a synthetic SET at the root. internal/transport's
// flushSession is the only caller that assembles a jsonObject diff message;
// it detects codec.JSONObject and rebuilds ops as that single root SET from
// a fresh Keeper.BroadcastSnapshot() before calling EncodeDiff, rather than
// passing through the per-field opcodes dirty.BuildDiff produced.
func (e jsonObjectEncoder) EncodeDiff(ops []dirty.Opcode, _ *ids.PathHashTable) ([]byte, error) {
	var root statetree.SnapshotValue
	if len(ops) == 1 && ops[0].Op == dirty.OpSet && len(ops[0].Path) == 0 {
		root = ops[0].Value
	} else {
		root = statetree.Object(nil)
	}
	return json.Marshal(jsonObjectMessage{Kind: "diff", Tree: toNative(root)})
}
