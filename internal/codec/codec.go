// Package codec implements the four state-update wire encoders: jsonObject,
// opcodeJsonArrayLegacy, opcodeJsonArray, and opcodeMessagePack. Every
// encoder is a pure function of (diff, broadcast-or-player snapshot,
// path_hash_table) — no hidden state, preferring small stateless helpers
// over encoder objects with internal buffers.
package codec

import (
	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// Kind selects one of the four wire encoders.
type Kind int

const (
	JSONObject Kind = iota
	OpcodeJSONArrayLegacy
	OpcodeJSONArray
	OpcodeMessagePack
)

func (k Kind) String() string {
	switch k {
	case JSONObject:
		return "jsonObject"
	case OpcodeJSONArrayLegacy:
		return "opcodeJsonArrayLegacy"
	case OpcodeJSONArray:
		return "opcodeJsonArray"
	case OpcodeMessagePack:
		return "opcodeMessagePack"
	}
	return "unknown"
}

// SupportsParallelEncoding reports whether transport's batch-encoding
// controller may fan this kind out across worker tasks. MsgPack does not
// participate in the parallel pool — this is modeled as a property of the
// encoder, not a hard carve-out in the
// caller, so a future encoder can opt in simply by returning true here.
func (k Kind) SupportsParallelEncoding() bool {
	return k == OpcodeJSONArrayLegacy || k == OpcodeJSONArray
}

// MessageKind tags whether an encoded payload is a full snapshot seed or an
// incremental diff.
type MessageKind int

const (
	FirstSync MessageKind = iota
	Diff
)

// OpCode is the wire numeral for each dirty.OpKind.
type OpCode int

const (
	OpCodeSet   OpCode = 0
	OpCodeDel   OpCode = 1
	OpCodeIns   OpCode = 2
	OpCodePatch OpCode = 3
)

func wireOpCode(op dirty.OpKind) OpCode {
	switch op {
	case dirty.OpSet, dirty.OpMutate:
		return OpCodeSet
	case dirty.OpDelete:
		return OpCodeDel
	case dirty.OpInsert:
		return OpCodeIns
	}
	return OpCodeSet
}

// Encoder produces one framed message from a diff (or, for firstSync, a full
// projection) plus the path-hash table path-hash encoders require.
type Encoder interface {
	Kind() Kind
	// EncodeFirstSync frames the full broadcast/player projection as a
	// firstSync message.
	EncodeFirstSync(snapshot statetree.SnapshotValue) ([]byte, error)
	// EncodeDiff frames an ordered opcode list as a diff message. table may
	// be nil for the two legacy/object encoders that never hash paths.
	EncodeDiff(ops []dirty.Opcode, table *ids.PathHashTable) ([]byte, error)
}

// New returns the Encoder for kind.
func New(kind Kind) Encoder {
	switch kind {
	case JSONObject:
		return jsonObjectEncoder{}
	case OpcodeJSONArrayLegacy:
		return opcodeJSONEncoder{pathHashed: false}
	case OpcodeJSONArray:
		return opcodeJSONEncoder{pathHashed: true}
	case OpcodeMessagePack:
		return opcodeMsgpackEncoder{}
	}
	return jsonObjectEncoder{}
}

// resolveContainerPath renders an opcode's wire path: a u32 hash for
// path-hash encoders, a literal dotted string otherwise. For OpInsert, the
// opcode's Path is the *container's* path (per dirty.Entry's own convention)
// and the element key/index is carried separately in the tuple's third slot;
// buildTuple passes the container path for literal encoders and the element
// path (whose template ends in "{*}" or "[*]") for path-hash encoders.
func resolveContainerPath(path ids.FieldPath, pathHashed bool, table *ids.PathHashTable) (interface{}, error) {
	if !pathHashed {
		return path.String(), nil
	}
	if table == nil {
		return nil, errMissingTable
	}
	id, ok := table.IDFor(path.Template())
	if !ok {
		return nil, errUnknownTemplate(path.Template())
	}
	return uint32(id), nil
}

type unknownTemplateError string

func (e unknownTemplateError) Error() string { return "codec: unknown path template: " + string(e) }

func errUnknownTemplate(tmpl string) error { return unknownTemplateError(tmpl) }

type missingTableError struct{}

func (missingTableError) Error() string { return "codec: path-hash encoder requires a non-nil PathHashTable" }

var errMissingTable error = missingTableError{}
