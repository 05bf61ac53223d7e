package graph

import (
	"github.com/agentic-research/contentgraph/internal/content"
)

// RelationType classifies how a related entry is connected.
type RelationType string

const (
	TypeReference    RelationType = "reference"
	TypeReferencedBy RelationType = "referenced-by"
	TypeParent       RelationType = "parent"
	TypeChild        RelationType = "child"
	TypeSibling      RelationType = "sibling"
	TypeAncestor     RelationType = "ancestor"
	TypeDescendant   RelationType = "descendant"
	TypeIndirect     RelationType = "indirect"
)

// AllTypes lists every relation type.
var AllTypes = []RelationType{
	TypeReference, TypeReferencedBy, TypeParent, TypeChild,
	TypeSibling, TypeAncestor, TypeDescendant, TypeIndirect,
}

// ParseType validates a relation type name.
func ParseType(s string) (RelationType, bool) {
	for _, t := range AllTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Relation is one edge from the point of view of a single entry.
// Entry stays nil until the relation is hydrated.
type Relation struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Field      string         `json:"field,omitempty"`
	Type       RelationType   `json:"type"`
	Depth      int            `json:"depth,omitempty"`
	Entry      *content.Entry `json:"entry,omitempty"`
}

// Key returns the identity of the related entry.
func (r Relation) Key() content.Key {
	return content.Key{Collection: r.Collection, ID: r.ID}
}

// RelationMap is the derived, read-only view of everything related to one entry.
type RelationMap struct {
	References   []Relation `json:"references"`
	ReferencedBy []Relation `json:"referencedBy"`
	Parent       []Relation `json:"parent"`
	Children     []Relation `json:"children"`
	Siblings     []Relation `json:"siblings"`
	Ancestors    []Relation `json:"ancestors"`
	Descendants  []Relation `json:"descendants"`
	Indirect     []Relation `json:"indirect"`
}

// fields returns pointers to every relation slice, in declaration order.
func (m *RelationMap) fields() []*[]Relation {
	return []*[]Relation{
		&m.References, &m.ReferencedBy, &m.Parent, &m.Children,
		&m.Siblings, &m.Ancestors, &m.Descendants, &m.Indirect,
	}
}

// Len returns the total number of relations.
func (m RelationMap) Len() int {
	n := 0
	for _, f := range m.fields() {
		n += len(*f)
	}
	return n
}

// Clone returns a deep copy of the slices so the copy can be hydrated
// without touching the graph snapshot.
func (m RelationMap) Clone() RelationMap {
	var out RelationMap
	src := m.fields()
	for i, dst := range out.fields() {
		*dst = cloneRelations(*src[i])
	}
	return out
}

// Filter keeps only relations whose type is in types. With no types the
// map is returned unchanged (as a copy).
func (m RelationMap) Filter(types ...RelationType) RelationMap {
	out := m.Clone()
	if len(types) == 0 {
		return out
	}
	keep := make(map[RelationType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	for _, f := range out.fields() {
		filtered := (*f)[:0]
		for _, r := range *f {
			if keep[r.Type] {
				filtered = append(filtered, r)
			}
		}
		*f = filtered
	}
	return out
}

func cloneRelations(in []Relation) []Relation {
	out := make([]Relation, len(in))
	copy(out, in)
	return out
}
