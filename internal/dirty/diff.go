package dirty

import (
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// Opcode is one entry of a state-update diff, matching the four wire
// opcodes: SET, DEL, INS, PATCH. This package only ever emits
// SET/DEL/INS — PATCH (compact sub-op encoding) is a codec-level compaction
// internal/codec may apply when serializing, not something the diff engine
// itself produces.
type Opcode struct {
	Op    OpKind
	Path  ids.FieldPath
	Value statetree.SnapshotValue
	Key   EntryKey
}

// Visibility answers whether a path is visible for a given diff's target
// (either the broadcast projection as a whole, or a specific player's
// view). internal/transport applies the broadcast check when it queues
// entries and then builds each session's diff with an always-visible
// implementation.
type Visibility interface {
	Visible(path ids.FieldPath) bool
}

// treeVisibility adapts a *statetree.Tree's broadcast-policy check to the
// Visibility interface.
type treeVisibility struct{ tree *statetree.Tree }

func TreeVisibility(tree *statetree.Tree) Visibility { return treeVisibility{tree: tree} }

func (v treeVisibility) Visible(path ids.FieldPath) bool { return v.tree.IsBroadcastVisible(path) }

// BuildDiff walks the tracker's ordered entry log once and emits the
// corresponding opcode list, dropping any entry whose path isn't visible
// under vis. Two diffs built from the same entries and the same visibility
// decision always produce the same opcode list in the same order — the
// ordering invariant a codec's byte-identical-output contract depends on.
func BuildDiff(entries []Entry, vis Visibility) []Opcode {
	out := make([]Opcode, 0, len(entries))
	for _, e := range entries {
		if !vis.Visible(e.Path) {
			continue
		}
		switch e.Op {
		case OpSet:
			out = append(out, Opcode{Op: OpSet, Path: e.Path, Value: e.Value})
		case OpDelete:
			out = append(out, Opcode{Op: OpDelete, Path: e.Path})
		case OpInsert:
			out = append(out, Opcode{Op: OpInsert, Path: e.Path, Value: e.Value, Key: e.Key})
		case OpMutate:
			out = append(out, Opcode{Op: OpMutate, Path: e.Path})
		}
	}
	return out
}
