package statetree

import "github.com/rawblock/landkeeper/internal/ids"

// SyncPolicy controls whether a field is replicated to players or kept
// server-side only.
type SyncPolicy int

const (
	// Broadcast fields are replicated to every member of the land.
	Broadcast SyncPolicy = iota
	// ServerOnly fields are never included in any player view. They are
	// still dirty-tracked for the reevaluation hash input only if
	// IncludeInHash is set on the field schema.
	ServerOnly
)

// FieldKind distinguishes the four shapes a schema field can take. The tree
// shape itself — which fields exist, and how they nest — is fixed at
// land-type registration; only leaf values and map/array cardinalities
// mutate at runtime.
type FieldKind int

const (
	KindLeafField FieldKind = iota
	KindComposite
	KindArrayField
	KindMapField
)

// FieldSchema describes one field of a StateNode: its name, policy, default
// value, and (for composite/array/map fields) the nested schema.
type FieldSchema struct {
	Name    string
	Kind    FieldKind
	Policy  SyncPolicy
	Default SnapshotValue

	// IncludeInHash: for ServerOnly fields, whether they still feed the
	// reevaluation state_hash even though they're never sent to players.
	IncludeInHash bool

	// Fields holds the ordered child fields of a composite.
	Fields []*FieldSchema

	// Element holds the element schema of an array or map field. Map keys
	// are always strings, which is what every wire codec needs anyway.
	Element *FieldSchema
}

// Leaf builds a scalar field schema.
func Leaf(name string, policy SyncPolicy, def SnapshotValue) *FieldSchema {
	return &FieldSchema{Name: name, Kind: KindLeafField, Policy: policy, Default: def}
}

// Composite builds a nested-object field schema.
func Composite(name string, policy SyncPolicy, fields ...*FieldSchema) *FieldSchema {
	return &FieldSchema{Name: name, Kind: KindComposite, Policy: policy, Fields: fields}
}

// ArrayOf builds an ordered-array field schema.
func ArrayOf(name string, policy SyncPolicy, element *FieldSchema) *FieldSchema {
	return &FieldSchema{Name: name, Kind: KindArrayField, Policy: policy, Element: element}
}

// MapOf builds a string-keyed map field schema.
func MapOf(name string, policy SyncPolicy, element *FieldSchema) *FieldSchema {
	return &FieldSchema{Name: name, Kind: KindMapField, Policy: policy, Element: element}
}

// AllTemplates walks a root composite schema and returns every possible
// FieldPath template it can produce, with array indices and map keys
// substituted by the "*" marker. This is the complete set the PathHashTable
// is built from at land-type registration.
func AllTemplates(root *FieldSchema) []string {
	var out []string
	var walk func(f *FieldSchema, prefix ids.FieldPath)
	walk = func(f *FieldSchema, prefix ids.FieldPath) {
		switch f.Kind {
		case KindLeafField:
			out = append(out, prefix.Template())
		case KindComposite:
			out = append(out, prefix.Template())
			for _, child := range f.Fields {
				walk(child, prefix.Append(ids.NameSeg(child.Name)))
			}
		case KindArrayField:
			out = append(out, prefix.Template())
			elemPrefix := prefix.Append(ids.IndexSeg(0))
			walk(f.Element, elemPrefix)
		case KindMapField:
			out = append(out, prefix.Template())
			elemPrefix := prefix.Append(ids.KeySeg(""))
			walk(f.Element, elemPrefix)
		}
	}
	for _, child := range root.Fields {
		walk(child, ids.FieldPath{ids.NameSeg(child.Name)})
	}
	return out
}
