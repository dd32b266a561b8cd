// Package ids defines the opaque identifiers shared across the core: land,
// player, session, client identity, and the field-path addressing scheme
// used by the state tree and its codecs.
package ids

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// LandID uniquely identifies one land instance across the process.
type LandID struct {
	LandType   string
	InstanceID string
}

func (l LandID) String() string {
	return l.LandType + "/" + l.InstanceID
}

// PlayerID is the logical identity of a player; it may rebind to a new
// SessionID across reconnects.
type PlayerID string

// SessionID denotes one transport connection.
type SessionID string

// ClientID identifies a per-connection client instance.
type ClientID string

// NewSessionID generates a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

// NewClientID generates a fresh random ClientID.
func NewClientID() ClientID { return ClientID(uuid.NewString()) }

// NewRequestID generates a fresh request_id for wire envelopes.
func NewRequestID() string { return uuid.NewString() }

// SegmentKind distinguishes the three ways a FieldPath segment can address
// into the state tree.
type SegmentKind int

const (
	SegmentName SegmentKind = iota
	SegmentIndex
	SegmentKey
)

// PathSegment is one hop of a FieldPath: a composite field name, an array
// index, or a map key.
type PathSegment struct {
	Kind  SegmentKind
	Name  string
	Index int
	Key   string
}

func NameSeg(name string) PathSegment  { return PathSegment{Kind: SegmentName, Name: name} }
func IndexSeg(i int) PathSegment       { return PathSegment{Kind: SegmentIndex, Index: i} }
func KeySeg(key string) PathSegment    { return PathSegment{Kind: SegmentKey, Key: key} }

// FieldPath is an ordered sequence of segments uniquely identifying a leaf
// or subtree inside one land's state.
type FieldPath []PathSegment

// String renders a literal, human-readable path: "players.a.hp",
// "inventory[3]", "scores.alice".
func (p FieldPath) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch seg.Kind {
		case SegmentName:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Name)
		case SegmentIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		case SegmentKey:
			// Legacy literal paths address a map entry the same way they
			// address a composite field: dot-joined by key, e.g.
			// "players.a" rather than "players{a}". The "{*}" marker form
			// is reserved for Template(), which feeds the PathHash table.
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// Template renders the path with map keys substituted by the "*" marker,
// matching the PathTemplate form used to build the PathHash table.
func (p FieldPath) Template() string {
	var b strings.Builder
	for i, seg := range p {
		switch seg.Kind {
		case SegmentName:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Name)
		case SegmentIndex:
			b.WriteString("[*]")
		case SegmentKey:
			b.WriteString("{*}")
		}
	}
	return b.String()
}

// Append returns a new path with seg appended, never mutating p's backing
// array.
func (p FieldPath) Append(seg PathSegment) FieldPath {
	out := make(FieldPath, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// Equal reports whether two paths address the same location.
func (p FieldPath) Equal(o FieldPath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// ParsePath parses a literal path rendered by FieldPath.String back into
// segments: "players.a.hp" -> [Name players][Name a][Name hp],
// "inventory[3]" -> [Name inventory][Index 3]. Map-key segments are
// indistinguishable from name segments in literal form (both dot-joined),
// so a parsed SegmentKey always comes back as SegmentName; callers that
// need to walk a schema-typed tree resolve the correct kind from the
// schema itself, not from the parsed segment kind.
func ParsePath(s string) FieldPath {
	if s == "" {
		return nil
	}
	var out FieldPath
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, NameSeg(b.String()))
			b.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '.':
			flush()
			i++
		case '[':
			flush()
			j := i + 1
			for j < len(s) && s[j] != ']' {
				j++
			}
			idx, _ := strconv.Atoi(s[i+1 : j])
			out = append(out, IndexSeg(idx))
			i = j + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	flush()
	return out
}

// PathHash is a stable 32-bit identifier precomputed per schema for a path
// template. It is schema-scoped: the same template string always hashes to
// the same u32 within one PathHashTable, and tables must be versioned
// alongside the schema they were derived from.
type PathHash uint32

// HashTemplate computes the PathHash for a literal template string using
// FNV-1a, which is stable across processes, architectures, and Go versions
// (unlike Go's runtime map hash) — a requirement for a wire-level contract.
func HashTemplate(template string) PathHash {
	h := fnv.New32a()
	_, _ = h.Write([]byte(template))
	return PathHash(h.Sum32())
}

// PathHashTable is the bidirectional map between path templates and their
// u32 ids, produced once at land-type registration and immutable after
// that point.
type PathHashTable struct {
	Version      string
	templateToID map[string]PathHash
	idToTemplate map[PathHash]string
}

// NewPathHashTable builds a table from the complete set of path templates a
// schema can produce. A template listed twice is accepted; two distinct
// templates that hash to the same id are an error since path hashes must be
// schema-unique.
func NewPathHashTable(version string, templates []string) (*PathHashTable, error) {
	t := &PathHashTable{
		Version:      version,
		templateToID: make(map[string]PathHash, len(templates)),
		idToTemplate: make(map[PathHash]string, len(templates)),
	}
	for _, tmpl := range templates {
		id := HashTemplate(tmpl)
		if existing, ok := t.idToTemplate[id]; ok && existing != tmpl {
			return nil, fmt.Errorf("path hash collision between %q and %q for table version %q", existing, tmpl, version)
		}
		t.templateToID[tmpl] = id
		t.idToTemplate[id] = tmpl
	}
	return t, nil
}

// IDFor returns the PathHash for a literal template, and false if the
// template was never registered in this schema.
func (t *PathHashTable) IDFor(template string) (PathHash, bool) {
	id, ok := t.templateToID[template]
	return id, ok
}

// TemplateFor is the reverse lookup, used by decoders.
func (t *PathHashTable) TemplateFor(id PathHash) (string, bool) {
	tmpl, ok := t.idToTemplate[id]
	return tmpl, ok
}

// Len reports the number of distinct templates in the table.
func (t *PathHashTable) Len() int { return len(t.templateToID) }
