package graph

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/agentic-research/contentgraph/internal/content"
)

// DefaultParentField is the conventional hierarchy field.
const DefaultParentField = "parent"

// Options controls what a graph build computes. Two builds with equal
// options over the same store produce structurally equal graphs.
type Options struct {
	IncludeIndirect  bool   `json:"includeIndirect"`
	MaxIndirectDepth int    `json:"maxIndirectDepth"`
	ParentField      string `json:"parentField"`
}

// DefaultOptions returns the options used by GetOrBuild.
func DefaultOptions() Options {
	return Options{
		MaxIndirectDepth: 2,
		ParentField:      DefaultParentField,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxIndirectDepth <= 0 {
		o.MaxIndirectDepth = 2
	}
	if o.ParentField == "" {
		o.ParentField = DefaultParentField
	}
	return o
}

// Fingerprint identifies the options for caching. Options that build the
// same graph share a fingerprint: the depth only counts with IncludeIndirect.
func (o Options) Fingerprint() string {
	o = o.withDefaults()
	if !o.IncludeIndirect {
		o.MaxIndirectDepth = 0
	}
	b, _ := json.Marshal(o) // plain struct, cannot fail
	return string(b)
}

// HierarchyNode holds one entry's hierarchy edges.
type HierarchyNode struct {
	Parent   *content.Key  `json:"parent,omitempty"`
	Children []content.Key `json:"children,omitempty"`
}

// RelationshipGraph is an immutable snapshot of every reference and
// hierarchy edge in a content store. Accessors return copies.
type RelationshipGraph struct {
	TotalEntries int
	BuiltAt      time.Time
	Options      Options

	collections []string
	order       []content.Key
	forward     map[content.Key][]Relation
	backward    map[content.Key][]Relation
	hierarchy   map[content.Key]HierarchyNode
	relations   map[content.Key]*RelationMap
}

// Collections lists the collections scanned by the build.
func (g *RelationshipGraph) Collections() []string {
	out := make([]string, len(g.collections))
	copy(out, g.collections)
	return out
}

// Keys lists every entry in the graph in build order.
func (g *RelationshipGraph) Keys() []content.Key {
	out := make([]content.Key, len(g.order))
	copy(out, g.order)
	return out
}

// Has reports whether the entry exists in the graph.
func (g *RelationshipGraph) Has(k content.Key) bool {
	_, ok := g.relations[k]
	return ok
}

// Relations returns a copy of the entry's relation map.
func (g *RelationshipGraph) Relations(k content.Key) (RelationMap, bool) {
	m, ok := g.relations[k]
	if !ok {
		return RelationMap{}, false
	}
	return m.Clone(), true
}

// ForwardEdges returns the references held by an entry.
func (g *RelationshipGraph) ForwardEdges(k content.Key) []Relation {
	return cloneRelations(g.forward[k])
}

// BackwardEdges returns the relations pointing at an entry.
func (g *RelationshipGraph) BackwardEdges(k content.Key) []Relation {
	return cloneRelations(g.backward[k])
}

// Hierarchy returns the parent/children edges of an entry.
func (g *RelationshipGraph) Hierarchy(k content.Key) HierarchyNode {
	h := g.hierarchy[k]
	out := HierarchyNode{Children: append([]content.Key(nil), h.Children...)}
	if h.Parent != nil {
		p := *h.Parent
		out.Parent = &p
	}
	return out
}

// Stats summarises a graph.
type Stats struct {
	TotalEntries  int            `json:"totalEntries"`
	Collections   []string       `json:"collections"`
	ForwardEdges  int            `json:"forwardEdges"`
	BackwardEdges int            `json:"backwardEdges"`
	Hierarchy     int            `json:"hierarchyEdges"`
	Indirect      int            `json:"indirect"`
	ByCollection  map[string]int `json:"byCollection"`
	BuiltAt       time.Time      `json:"builtAt"`
	Options       Options        `json:"options"`
}

// Stats counts entries and edges.
func (g *RelationshipGraph) Stats() Stats {
	s := Stats{
		TotalEntries: g.TotalEntries,
		Collections:  g.Collections(),
		ByCollection: make(map[string]int, len(g.collections)),
		BuiltAt:      g.BuiltAt,
		Options:      g.Options,
	}
	for _, k := range g.order {
		s.ByCollection[k.Collection]++
		s.ForwardEdges += len(g.forward[k])
		s.BackwardEdges += len(g.backward[k])
		if g.hierarchy[k].Parent != nil {
			s.Hierarchy++
		}
		s.Indirect += len(g.relations[k].Indirect)
	}
	return s
}

// sortedKeys returns the map keys in lexical order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
