package statetree

import (
	"fmt"

	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
)

// ChangeRecorder receives every mutation the tree performs, in the order
// they happen. internal/dirty implements this; statetree depends only on
// the interface to avoid a package cycle (dirty's diff engine needs
// SnapshotValue, which lives here).
type ChangeRecorder interface {
	RecordSet(path ids.FieldPath, value SnapshotValue)
	RecordDelete(path ids.FieldPath)
	// RecordArrayInsert and RecordMapInsert both take the *container's*
	// path (the array or map field itself), not the element's path: a
	// path-hash codec addresses "items[*]"/"players{*}" once for every
	// insert, and needs the index/key carried alongside it to know where
	// the new element lands.
	RecordArrayInsert(containerPath ids.FieldPath, index int, value SnapshotValue)
	RecordMapInsert(containerPath ids.FieldPath, key string, value SnapshotValue)
	RecordMutate(path ids.FieldPath)
}

// noopRecorder discards every change; used when a tree is built without a
// tracker (e.g. a scratch copy for rollback).
type noopRecorder struct{}

func (noopRecorder) RecordSet(ids.FieldPath, SnapshotValue)           {}
func (noopRecorder) RecordDelete(ids.FieldPath)                       {}
func (noopRecorder) RecordArrayInsert(ids.FieldPath, int, SnapshotValue) {}
func (noopRecorder) RecordMapInsert(ids.FieldPath, string, SnapshotValue) {}
func (noopRecorder) RecordMutate(ids.FieldPath)                       {}

// Node is a runtime tree interior or leaf, instantiated from a FieldSchema.
type Node struct {
	schema *FieldSchema

	leaf SnapshotValue // valid when schema.Kind == KindLeafField

	children map[string]*Node // valid when schema.Kind == KindComposite
	array    []*Node          // valid when schema.Kind == KindArrayField
	table    map[string]*Node // valid when schema.Kind == KindMapField
	keyOrder []string         // insertion order of table keys, for stable iteration
}

func newNode(schema *FieldSchema) *Node {
	n := &Node{schema: schema}
	switch schema.Kind {
	case KindLeafField:
		n.leaf = schema.Default
	case KindComposite:
		n.children = make(map[string]*Node, len(schema.Fields))
		for _, f := range schema.Fields {
			n.children[f.Name] = newNode(f)
		}
	case KindArrayField:
		n.array = nil
	case KindMapField:
		n.table = make(map[string]*Node)
	}
	return n
}

// Tree is one land's complete state tree: a fixed schema plus the live
// values mutating at runtime.
type Tree struct {
	rootSchema *FieldSchema // synthetic composite wrapping the schema's top-level fields
	root       *Node
	recorder   ChangeRecorder
}

// NewTree builds a fresh tree from a root composite schema (its Fields are
// the top-level land state fields), wired to recorder for change tracking.
func NewTree(root *FieldSchema, recorder ChangeRecorder) *Tree {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Tree{rootSchema: root, root: newNode(root), recorder: recorder}
}

// resolve walks path from the tree root and returns the node at that
// location along with its field schema, or an error if the path doesn't
// exist in the schema.
func (t *Tree) resolve(path ids.FieldPath) (*Node, error) {
	cur := t.root
	for _, seg := range path {
		switch seg.Kind {
		case ids.SegmentName:
			if cur.schema.Kind != KindComposite {
				return nil, errs.New(errs.InvalidAction, fmt.Sprintf("path segment %q on non-composite field", seg.Name))
			}
			next, ok := cur.children[seg.Name]
			if !ok {
				return nil, errs.New(errs.InvalidAction, fmt.Sprintf("unknown field %q", seg.Name))
			}
			cur = next
		case ids.SegmentIndex:
			if cur.schema.Kind != KindArrayField {
				return nil, errs.New(errs.InvalidAction, "index segment on non-array field")
			}
			if seg.Index < 0 || seg.Index >= len(cur.array) {
				return nil, errs.New(errs.InvalidAction, "array index out of range")
			}
			cur = cur.array[seg.Index]
		case ids.SegmentKey:
			if cur.schema.Kind != KindMapField {
				return nil, errs.New(errs.InvalidAction, "key segment on non-map field")
			}
			next, ok := cur.table[seg.Key]
			if !ok {
				return nil, errs.New(errs.InvalidAction, fmt.Sprintf("unknown map key %q", seg.Key))
			}
			cur = next
		}
	}
	return cur, nil
}

// Get reads the snapshot value at path.
func (t *Tree) Get(path ids.FieldPath) (SnapshotValue, error) {
	n, err := t.resolve(path)
	if err != nil {
		return SnapshotValue{}, err
	}
	return n.snapshot(true), nil
}

// SetLeaf replaces the value of a leaf field, recording a "replaced" change.
func (t *Tree) SetLeaf(path ids.FieldPath, value SnapshotValue) error {
	n, err := t.resolve(path)
	if err != nil {
		return err
	}
	if n.schema.Kind != KindLeafField {
		return errs.New(errs.InvalidAction, "SetLeaf on non-leaf field")
	}
	n.leaf = value
	t.recorder.RecordSet(path, value)
	return nil
}

// InsertArrayElement inserts a fresh element at index, shifting subsequent
// elements right.
func (t *Tree) InsertArrayElement(path ids.FieldPath, index int, value SnapshotValue) error {
	n, err := t.resolve(path)
	if err != nil {
		return err
	}
	if n.schema.Kind != KindArrayField {
		return errs.New(errs.InvalidAction, "InsertArrayElement on non-array field")
	}
	if index < 0 || index > len(n.array) {
		return errs.New(errs.InvalidAction, "array insert index out of range")
	}
	elem := newNode(n.schema.Element)
	if err := applyValueToNode(elem, value); err != nil {
		return err
	}
	n.array = append(n.array, nil)
	copy(n.array[index+1:], n.array[index:])
	n.array[index] = elem
	t.recorder.RecordArrayInsert(path, index, value)
	return nil
}

// DeleteArrayElement removes the element at index.
func (t *Tree) DeleteArrayElement(path ids.FieldPath, index int) error {
	n, err := t.resolve(path)
	if err != nil {
		return err
	}
	if n.schema.Kind != KindArrayField {
		return errs.New(errs.InvalidAction, "DeleteArrayElement on non-array field")
	}
	if index < 0 || index >= len(n.array) {
		return errs.New(errs.InvalidAction, "array delete index out of range")
	}
	n.array = append(n.array[:index], n.array[index+1:]...)
	t.recorder.RecordDelete(path.Append(ids.IndexSeg(index)))
	return nil
}

// SetMapEntry inserts or replaces the entry at key.
func (t *Tree) SetMapEntry(path ids.FieldPath, key string, value SnapshotValue) error {
	n, err := t.resolve(path)
	if err != nil {
		return err
	}
	if n.schema.Kind != KindMapField {
		return errs.New(errs.InvalidAction, "SetMapEntry on non-map field")
	}
	entryPath := path.Append(ids.KeySeg(key))
	if existing, ok := n.table[key]; ok {
		if err := applyValueToNode(existing, value); err != nil {
			return err
		}
		t.recorder.RecordSet(entryPath, value)
		return nil
	}
	elem := newNode(n.schema.Element)
	if err := applyValueToNode(elem, value); err != nil {
		return err
	}
	n.table[key] = elem
	n.keyOrder = append(n.keyOrder, key)
	t.recorder.RecordMapInsert(path, key, value)
	return nil
}

// DeleteMapEntry removes the entry at key.
func (t *Tree) DeleteMapEntry(path ids.FieldPath, key string) error {
	n, err := t.resolve(path)
	if err != nil {
		return err
	}
	if n.schema.Kind != KindMapField {
		return errs.New(errs.InvalidAction, "DeleteMapEntry on non-map field")
	}
	if _, ok := n.table[key]; !ok {
		return errs.New(errs.InvalidAction, fmt.Sprintf("unknown map key %q", key))
	}
	delete(n.table, key)
	for i, k := range n.keyOrder {
		if k == key {
			n.keyOrder = append(n.keyOrder[:i], n.keyOrder[i+1:]...)
			break
		}
	}
	t.recorder.RecordDelete(path.Append(ids.KeySeg(key)))
	return nil
}

// applyValueToNode assigns a whole SnapshotValue onto a freshly created (or
// being-replaced) node, recursing for composite/array/map shapes. It does
// not itself record changes — callers record the top-level operation.
func applyValueToNode(n *Node, value SnapshotValue) error {
	switch n.schema.Kind {
	case KindLeafField:
		n.leaf = value
		return nil
	case KindComposite:
		if value.Kind != KindObject {
			return errs.New(errs.InvalidAction, "composite field requires object value")
		}
		for name, child := range n.children {
			if v, ok := value.Object[name]; ok {
				if err := applyValueToNode(child, v); err != nil {
					return err
				}
			}
		}
		return nil
	case KindArrayField:
		if value.Kind != KindArray {
			return errs.New(errs.InvalidAction, "array field requires array value")
		}
		n.array = make([]*Node, len(value.Array))
		for i, v := range value.Array {
			elem := newNode(n.schema.Element)
			if err := applyValueToNode(elem, v); err != nil {
				return err
			}
			n.array[i] = elem
		}
		return nil
	case KindMapField:
		if value.Kind != KindObject {
			return errs.New(errs.InvalidAction, "map field requires object value")
		}
		n.table = make(map[string]*Node, len(value.Object))
		n.keyOrder = n.keyOrder[:0]
		for _, k := range value.SortedKeys() {
			elem := newNode(n.schema.Element)
			if err := applyValueToNode(elem, value.Object[k]); err != nil {
				return err
			}
			n.table[k] = elem
			n.keyOrder = append(n.keyOrder, k)
		}
		return nil
	}
	return nil
}

// snapshot converts a node into its SnapshotValue shape. When
// includeAll is false, server-only fields are skipped from composites;
// when true, every field is included (used for server-side audit / hash
// input and for Get()).
func (n *Node) snapshot(includeAll bool) SnapshotValue {
	switch n.schema.Kind {
	case KindLeafField:
		return n.leaf.Clone()
	case KindComposite:
		obj := make(map[string]SnapshotValue, len(n.schema.Fields))
		for _, f := range n.schema.Fields {
			if !includeAll && f.Policy == ServerOnly {
				continue
			}
			obj[f.Name] = n.children[f.Name].snapshot(includeAll)
		}
		return Object(obj)
	case KindArrayField:
		arr := make([]SnapshotValue, len(n.array))
		for i, e := range n.array {
			arr[i] = e.snapshot(includeAll)
		}
		return Array(arr)
	case KindMapField:
		obj := make(map[string]SnapshotValue, len(n.table))
		for _, k := range n.keyOrder {
			obj[k] = n.table[k].snapshot(includeAll)
		}
		return Object(obj)
	}
	return Null()
}

// BroadcastProjection returns the subset of the tree visible to ordinary
// players: every field with policy Broadcast, recursively.
func (t *Tree) BroadcastProjection() SnapshotValue {
	obj := make(map[string]SnapshotValue, len(t.rootSchema.Fields))
	for _, f := range t.rootSchema.Fields {
		if f.Policy == ServerOnly {
			continue
		}
		obj[f.Name] = t.root.children[f.Name].snapshot(false)
	}
	return Object(obj)
}

// HashProjection returns the projection used as reevaluation state_hash
// input: every Broadcast field, plus ServerOnly fields explicitly marked
// IncludeInHash.
func (t *Tree) HashProjection() SnapshotValue {
	obj := make(map[string]SnapshotValue, len(t.rootSchema.Fields))
	for _, f := range t.rootSchema.Fields {
		if f.Policy == ServerOnly && !f.IncludeInHash {
			continue
		}
		obj[f.Name] = t.root.children[f.Name].snapshot(true)
	}
	return Object(obj)
}

// Snapshot returns the full tree state (including server-only fields), used
// by a keeper as the pre-command copy a panicking mutator rolls back to.
func (t *Tree) Snapshot() SnapshotValue { return t.root.snapshot(true) }

// Restore replaces the entire tree content from a prior Snapshot(). It does
// not go through the recorder — callers that need the restoration itself
// dirty-tracked (it never should be; a rollback must look like the failed
// command never happened) call this directly on the tree, bypassing
// RecordSet/RecordSet-equivalents.
func (t *Tree) Restore(value SnapshotValue) error {
	return applyValueToNode(t.root, value)
}

// RootSchema exposes the schema the tree was built from, used by the
// PathHashTable builder and the codec.
func (t *Tree) RootSchema() *FieldSchema { return t.rootSchema }

// IsBroadcastVisible reports whether path is visible in the broadcast
// projection: every field from the root down to path's leaf must carry
// policy Broadcast. A ServerOnly field anywhere along the path hides
// everything beneath it from player views, regardless of that subtree's
// own per-field tags.
func (t *Tree) IsBroadcastVisible(path ids.FieldPath) bool {
	fields := t.rootSchema.Fields
	var cur *FieldSchema
	for _, seg := range path {
		switch seg.Kind {
		case ids.SegmentName:
			cur = nil
			for _, f := range fields {
				if f.Name == seg.Name {
					cur = f
					break
				}
			}
			if cur == nil {
				return false
			}
			if cur.Policy == ServerOnly {
				return false
			}
			fields = cur.Fields
		case ids.SegmentIndex:
			if cur == nil || cur.Kind != KindArrayField {
				return false
			}
			cur = cur.Element
			if cur.Policy == ServerOnly {
				return false
			}
			fields = cur.Fields
		case ids.SegmentKey:
			if cur == nil || cur.Kind != KindMapField {
				return false
			}
			cur = cur.Element
			if cur.Policy == ServerOnly {
				return false
			}
			fields = cur.Fields
		}
	}
	return true
}
