// Package dirty implements the per-field dirty tracker and diff engine:
// every writable field is one of {clean, replaced, mutated}; maps/arrays
// additionally record key-level deltas. The tracker captures changes as an
// ordered operation log as they happen on the state tree, preserving
// insertion order of operations (not of keys) directly, rather than
// requiring a separate tree walk to reconstruct order.
package dirty

import (
	"sync"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// OpKind is the kind of change recorded for one tracker entry.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
	OpInsert
	OpMutate
)

// EntryKey identifies the position an OpInsert targets within its
// container: either a numeric array index or a string map key. Exactly one
// of IsString's two branches is populated.
type EntryKey struct {
	IsString bool
	Index    int
	Str      string
}

func IndexKey(i int) EntryKey  { return EntryKey{Index: i} }
func StringKey(s string) EntryKey { return EntryKey{IsString: true, Str: s} }

// Entry is one recorded mutation, in the order it was applied to the tree.
// For OpSet/OpDelete/OpMutate, Path is the full literal path of the
// affected field. For OpInsert, Path is the *container's* path (the array
// or map field itself) and Key carries the position/key being inserted —
// this is what lets a path-hash encoder address "items[*]" once for every
// insert while still telling the client exactly where the new element
// goes.
type Entry struct {
	Op    OpKind
	Path  ids.FieldPath
	Key   EntryKey
	Value statetree.SnapshotValue
}

// Tracker implements statetree.ChangeRecorder and accumulates an ordered
// log of mutations since the last Reset. It is safe for concurrent use,
// though in practice only the owning LandKeeper's single writer task ever
// calls the Record* methods.
type Tracker struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Tracker { return &Tracker{} }

func (t *Tracker) RecordSet(path ids.FieldPath, value statetree.SnapshotValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Op: OpSet, Path: path, Value: value.Clone()})
}

func (t *Tracker) RecordDelete(path ids.FieldPath) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Op: OpDelete, Path: path})
}

// RecordArrayInsert records an insertion into an ordered array.
// containerPath is the array field's own path; index is the position the
// new element lands at.
func (t *Tracker) RecordArrayInsert(containerPath ids.FieldPath, index int, value statetree.SnapshotValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Op: OpInsert, Path: containerPath, Key: IndexKey(index), Value: value.Clone()})
}

// RecordMapInsert records an insertion into a map (new key, or key
// reinsertion after a delete). containerPath is the map field's own path.
func (t *Tracker) RecordMapInsert(containerPath ids.FieldPath, key string, value statetree.SnapshotValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Op: OpInsert, Path: containerPath, Key: StringKey(key), Value: value.Clone()})
}

func (t *Tracker) RecordMutate(path ids.FieldPath) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Op: OpMutate, Path: path})
}

// Entries returns a copy of the accumulated log, in recording order.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of entries recorded since the last Reset, used by
// a keeper to mark a rollback point before invoking a rule body.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// TruncateTo discards every entry recorded after position n, used to roll
// back the dirty log when a rule panics partway through a command — the
// state tree restore and this truncation together make the failed command
// invisible to the next diff.
func (t *Tracker) TruncateTo(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < len(t.entries) {
		t.entries = t.entries[:n]
	}
}

// IsEmpty reports whether anything has been recorded since the last Reset.
func (t *Tracker) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) == 0
}

// Reset clears the log. It is only called atomically on a successful sync
// flush — a partial/failed flush must leave the tracker unchanged so the
// next attempt resends the same diff.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
