package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/ref"
	"go.uber.org/zap"
)

// Build scans every entry of every collection once and derives the full
// relationship graph. Store failures abort the build; no partial graph is
// returned.
//
// Phases:
//  1. enumerate collections and entries, interning keys
//  2. forward edges from reference-shaped values anywhere in entry data
//  3. backward edges by inverting the forward set
//  4. hierarchy edges from the parent field, with ancestors, descendants
//     and siblings derived under visited-set guards
//  5. optionally, indirect relations by bounded BFS
func Build(ctx context.Context, store content.Store, opts Options, logger *zap.Logger) (*RelationshipGraph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	b := &builder{
		opts:   opts,
		logger: logger,
	}
	if err := b.load(ctx, store); err != nil {
		return nil, err
	}
	b.collectForward()
	b.invertEdges()
	b.buildHierarchy()
	if opts.IncludeIndirect {
		b.computeIndirect()
	}

	g := &RelationshipGraph{
		TotalEntries: len(b.entries),
		BuiltAt:      time.Now(),
		Options:      opts,
		collections:  b.collections,
		order:        b.order,
		forward:      b.forward,
		backward:     b.backward,
		hierarchy:    b.hierarchy,
		relations:    b.relations,
	}
	logger.Debug("relationship graph built",
		zap.Int("entries", g.TotalEntries),
		zap.Int("collections", len(g.collections)),
		zap.Bool("indirect", opts.IncludeIndirect))
	return g, nil
}

type builder struct {
	opts   Options
	logger *zap.Logger

	collections []string
	order       []content.Key
	entries     map[content.Key]*content.Entry
	index       *nodeIndex

	forward   map[content.Key][]Relation
	backward  map[content.Key][]Relation
	hierarchy map[content.Key]HierarchyNode
	relations map[content.Key]*RelationMap
}

func (b *builder) load(ctx context.Context, store content.Store) error {
	cols, err := store.Collections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	b.collections = cols
	b.entries = make(map[content.Key]*content.Entry)
	for _, c := range cols {
		list, err := store.ListEntries(ctx, c)
		if errors.Is(err, content.ErrUnknownCollection) {
			continue
		}
		if err != nil {
			return fmt.Errorf("list entries %s: %w", c, err)
		}
		for _, e := range list {
			k := e.Key()
			if _, dup := b.entries[k]; dup {
				continue
			}
			b.entries[k] = e
			b.order = append(b.order, k)
		}
	}

	b.index = newNodeIndex(len(b.order))
	b.relations = make(map[content.Key]*RelationMap, len(b.order))
	for _, k := range b.order {
		b.index.add(k)
		b.relations[k] = &RelationMap{}
	}
	return nil
}

// collectForward walks each entry's data for references. The field of a
// nested reference is its dotted path from the top-level key.
func (b *builder) collectForward() {
	b.forward = make(map[content.Key][]Relation, len(b.order))
	for _, k := range b.order {
		e := b.entries[k]
		seen := make(map[string]bool)
		var rels []Relation
		emit := func(field string, r ref.Reference) {
			target := r.Key()
			if target == k {
				return
			}
			dedup := field + "\x00" + target.String()
			if seen[dedup] {
				return
			}
			seen[dedup] = true
			if _, ok := b.entries[target]; !ok {
				b.logger.Warn("dangling reference",
					zap.String("source", k.String()),
					zap.String("field", field),
					zap.String("target", target.String()))
			}
			rels = append(rels, Relation{
				Collection: target.Collection,
				ID:         target.ID,
				Field:      field,
				Type:       TypeReference,
				Depth:      1,
			})
		}
		for _, field := range sortedKeys(e.Data) {
			if field == b.opts.ParentField {
				continue
			}
			walkReferences(e.Data[field], field, emit)
		}
		b.forward[k] = rels
		b.relations[k].References = rels
	}
}

// walkReferences calls emit for every reference reachable in v.
func walkReferences(v any, field string, emit func(string, ref.Reference)) {
	if r, ok := ref.AsReference(v); ok {
		emit(field, r)
		return
	}
	if refs, ok := ref.AsReferenceSequence(v); ok {
		for _, r := range refs {
			emit(field, r)
		}
		return
	}
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			walkReferences(t[k], field+"."+k, emit)
		}
	case []any:
		for _, el := range t {
			walkReferences(el, field, emit)
		}
	}
}

// invertEdges populates backward edges in one pass over the forward set.
// Dangling targets get no backward entry.
func (b *builder) invertEdges() {
	b.backward = make(map[content.Key][]Relation, len(b.order))
	for _, src := range b.order {
		for _, r := range b.forward[src] {
			target := r.Key()
			if _, ok := b.entries[target]; !ok {
				continue
			}
			b.backward[target] = append(b.backward[target], Relation{
				Collection: src.Collection,
				ID:         src.ID,
				Field:      r.Field,
				Type:       TypeReferencedBy,
				Depth:      1,
			})
		}
	}
	for k, rels := range b.backward {
		b.relations[k].ReferencedBy = rels
	}
}

// parentKey reads the parent field: a plain id within the same collection
// or a reference to any collection.
func (b *builder) parentKey(e *content.Entry) (content.Key, bool) {
	v, ok := e.Data[b.opts.ParentField]
	if !ok || v == nil {
		return content.Key{}, false
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return content.Key{}, false
		}
		return content.Key{Collection: e.Collection, ID: s}, true
	}
	if r, ok := ref.AsReference(v); ok {
		return r.Key(), true
	}
	return content.Key{}, false
}

func (b *builder) buildHierarchy() {
	b.hierarchy = make(map[content.Key]HierarchyNode, len(b.order))
	parents := make(map[content.Key]content.Key)
	children := make(map[content.Key][]content.Key)

	for _, k := range b.order {
		p, ok := b.parentKey(b.entries[k])
		if !ok {
			continue
		}
		if p == k {
			b.logger.Warn("entry is its own parent", zap.String("entry", k.String()))
			continue
		}
		if _, exists := b.entries[p]; !exists {
			b.logger.Warn("missing parent",
				zap.String("entry", k.String()),
				zap.String("parent", p.String()))
			continue
		}
		parents[k] = p
		children[p] = append(children[p], k)
	}

	for _, k := range b.order {
		node := HierarchyNode{Children: children[k]}
		if p, ok := parents[k]; ok {
			p := p
			node.Parent = &p
		}
		b.hierarchy[k] = node

		m := b.relations[k]
		if node.Parent != nil {
			m.Parent = []Relation{hierarchyRelation(*node.Parent, TypeParent, 1)}
			for _, s := range children[*node.Parent] {
				if s != k {
					m.Siblings = append(m.Siblings, hierarchyRelation(s, TypeSibling, 1))
				}
			}
		}
		for _, c := range node.Children {
			m.Children = append(m.Children, hierarchyRelation(c, TypeChild, 1))
		}
		m.Ancestors = b.ancestors(k, parents)
		m.Descendants = b.descendants(k, children)
	}
}

// ancestors walks the parent chain to the root, stopping on a cycle.
func (b *builder) ancestors(k content.Key, parents map[content.Key]content.Key) []Relation {
	self, _ := b.index.lookup(k)
	visited := newVisitedSet(self)
	var out []Relation
	depth := 1
	for cur, ok := parents[k]; ok; cur, ok = parents[cur] {
		id, _ := b.index.lookup(cur)
		if !visited.Visit(id) {
			break
		}
		out = append(out, hierarchyRelation(cur, TypeAncestor, depth))
		depth++
	}
	return out
}

// descendants runs a BFS over the children adjacency.
func (b *builder) descendants(k content.Key, children map[content.Key][]content.Key) []Relation {
	self, _ := b.index.lookup(k)
	visited := newVisitedSet(self)
	var out []Relation
	frontier := []content.Key{k}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []content.Key
		for _, n := range frontier {
			for _, c := range children[n] {
				id, _ := b.index.lookup(c)
				if !visited.Visit(id) {
					continue
				}
				out = append(out, hierarchyRelation(c, TypeDescendant, depth))
				next = append(next, c)
			}
		}
		frontier = next
	}
	return out
}

func hierarchyRelation(k content.Key, t RelationType, depth int) Relation {
	return Relation{Collection: k.Collection, ID: k.ID, Type: t, Depth: depth}
}

// computeIndirect records, for every entry, the nodes first reached at hop
// 2..MaxIndirectDepth over reference and parent/child edges. Anything the
// entry already relates to directly is excluded.
func (b *builder) computeIndirect() {
	adj := b.adjacency()
	for _, k := range b.order {
		self, _ := b.index.lookup(k)
		m := b.relations[k]

		excluded := newVisitedSet(self)
		for _, f := range [][]Relation{m.References, m.ReferencedBy, m.Parent, m.Children, m.Siblings, m.Ancestors, m.Descendants} {
			for _, r := range f {
				if id, ok := b.index.lookup(r.Key()); ok {
					excluded.Visit(id)
				}
			}
		}

		seen := newVisitedSet(self)
		frontier := []uint32{self}
		for hop := 1; hop <= b.opts.MaxIndirectDepth && len(frontier) > 0; hop++ {
			var next []uint32
			for _, n := range frontier {
				for _, nb := range adj[n] {
					if !seen.Visit(nb) {
						continue
					}
					next = append(next, nb)
					if hop >= 2 && !excluded.Has(nb) {
						target := b.index.key(nb)
						m.Indirect = append(m.Indirect, Relation{
							Collection: target.Collection,
							ID:         target.ID,
							Type:       TypeIndirect,
							Depth:      hop,
						})
					}
				}
			}
			frontier = next
		}
	}
}

// adjacency builds deduplicated neighbour lists over forward, backward,
// parent and child edges between existing entries.
func (b *builder) adjacency() [][]uint32 {
	adj := make([][]uint32, b.index.len())
	for _, k := range b.order {
		self, _ := b.index.lookup(k)
		seen := newVisitedSet(self)
		add := func(t content.Key) {
			id, ok := b.index.lookup(t)
			if ok && seen.Visit(id) {
				adj[self] = append(adj[self], id)
			}
		}
		for _, r := range b.forward[k] {
			add(r.Key())
		}
		for _, r := range b.backward[k] {
			add(r.Key())
		}
		h := b.hierarchy[k]
		if h.Parent != nil {
			add(*h.Parent)
		}
		for _, c := range h.Children {
			add(c)
		}
	}
	return adj
}
