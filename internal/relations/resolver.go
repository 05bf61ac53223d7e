// Package relations answers per-entry relationship questions against the
// cached relationship graph, optionally hydrating related entries.
package relations

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/graph"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = fmt.Errorf("relations: %w", content.ErrNotFound)

// hydrateConcurrency bounds parallel store fetches during hydration.
const hydrateConcurrency = 8

// Resolver serves relation lookups.
type Resolver struct {
	cache  *graph.Cache
	opts   graph.Options
	logger *zap.Logger
}

// NewResolver serves lookups from graphs built with opts. Callers that need
// indirect relations start from these options (see WithDepth).
func NewResolver(cache *graph.Cache, opts graph.Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cache: cache, opts: opts, logger: logger}
}

// Options returns the base graph options.
func (r *Resolver) Options() graph.Options {
	return r.opts
}

// WithDepth returns the base options with indirect relations up to depth
// when depth is above 1, and the base options unchanged otherwise.
func (r *Resolver) WithDepth(depth int) graph.Options {
	opts := r.opts
	if depth > 1 {
		opts.IncludeIndirect = true
		opts.MaxIndirectDepth = depth
	}
	return opts
}

// ReferenceFilter narrows reference lookups.
type ReferenceFilter struct {
	// Field keeps only relations created by this field.
	Field string
	// Collection keeps only relations whose other end lives in this collection.
	Collection string
	// Resolve hydrates Relation.Entry.
	Resolve bool
}

// RelatedOptions controls GetAllRelatedEntries.
type RelatedOptions struct {
	IncludeIndirect bool
	MaxDepth        int
	Resolve         bool
}

// GetRelations returns the relation map of an entry, filtered to types when
// any are given. The map is a copy; callers may hydrate it freely.
func (r *Resolver) GetRelations(ctx context.Context, collection, id string, types ...graph.RelationType) (graph.RelationMap, error) {
	return r.GetRelationsWith(ctx, r.opts, collection, id, types...)
}

// GetRelationsWith is GetRelations against the graph built with opts.
func (r *Resolver) GetRelationsWith(ctx context.Context, opts graph.Options, collection, id string, types ...graph.RelationType) (graph.RelationMap, error) {
	g, err := r.cache.Get(ctx, opts)
	if err != nil {
		return graph.RelationMap{}, err
	}
	return lookup(g, collection, id, types)
}

func lookup(g *graph.RelationshipGraph, collection, id string, types []graph.RelationType) (graph.RelationMap, error) {
	m, ok := g.Relations(content.Key{Collection: collection, ID: id})
	if !ok {
		return graph.RelationMap{}, fmt.Errorf("%s:%s: %w", collection, id, ErrNotFound)
	}
	if len(types) > 0 {
		m = m.Filter(types...)
	}
	return m, nil
}

// GetReferencedEntries returns the entry's forward references.
func (r *Resolver) GetReferencedEntries(ctx context.Context, collection, id string, f ReferenceFilter) ([]graph.Relation, error) {
	m, err := r.GetRelations(ctx, collection, id, graph.TypeReference)
	if err != nil {
		return nil, err
	}
	return r.narrow(ctx, m.References, f)
}

// GetReferencingEntries returns the entries that reference this one.
// Filter.Collection narrows by the referencing entry's collection.
func (r *Resolver) GetReferencingEntries(ctx context.Context, collection, id string, f ReferenceFilter) ([]graph.Relation, error) {
	m, err := r.GetRelations(ctx, collection, id, graph.TypeReferencedBy)
	if err != nil {
		return nil, err
	}
	return r.narrow(ctx, m.ReferencedBy, f)
}

func (r *Resolver) narrow(ctx context.Context, rels []graph.Relation, f ReferenceFilter) ([]graph.Relation, error) {
	out := make([]graph.Relation, 0, len(rels))
	for _, rel := range rels {
		if f.Field != "" && rel.Field != f.Field {
			continue
		}
		if f.Collection != "" && rel.Collection != f.Collection {
			continue
		}
		out = append(out, rel)
	}
	if f.Resolve {
		if err := r.ResolveRelations(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetAllRelatedEntries unions references, referencedBy and (optionally)
// indirect relations up to MaxDepth, keeping the first relation seen per
// identity. Direct relations therefore win over indirect ones.
func (r *Resolver) GetAllRelatedEntries(ctx context.Context, collection, id string, o RelatedOptions) ([]graph.Relation, error) {
	opts := r.opts
	if o.IncludeIndirect {
		opts = r.WithDepth(max(o.MaxDepth, 2))
	}
	m, err := r.GetRelationsWith(ctx, opts, collection, id)
	if err != nil {
		return nil, err
	}

	candidates := make([]graph.Relation, 0, len(m.References)+len(m.ReferencedBy)+len(m.Indirect))
	candidates = append(candidates, m.References...)
	candidates = append(candidates, m.ReferencedBy...)
	if o.IncludeIndirect {
		for _, rel := range m.Indirect {
			if o.MaxDepth <= 0 || rel.Depth <= o.MaxDepth {
				candidates = append(candidates, rel)
			}
		}
	}

	seen := make(map[content.Key]bool, len(candidates))
	out := candidates[:0]
	for _, rel := range candidates {
		if seen[rel.Key()] {
			continue
		}
		seen[rel.Key()] = true
		out = append(out, rel)
	}

	if o.Resolve {
		if err := r.ResolveRelations(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResolveRelations hydrates rels[i].Entry in place, fetching each distinct
// identity once and concurrently. Dangling targets and failed fetches leave
// Entry nil; they are logged, not returned. Only cancellation of ctx is an error.
func (r *Resolver) ResolveRelations(ctx context.Context, rels []graph.Relation) error {
	if len(rels) == 0 {
		return nil
	}

	var unique []content.Key
	positions := make(map[content.Key][]int)
	for i, rel := range rels {
		k := rel.Key()
		if _, ok := positions[k]; !ok {
			unique = append(unique, k)
		}
		positions[k] = append(positions[k], i)
	}

	store := r.cache.Store()
	fetched := make([]*content.Entry, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i, k := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := store.GetEntry(gctx, k.Collection, k.ID)
			if err != nil {
				r.logger.Warn("relation fetch failed", zap.String("entry", k.String()), zap.Error(err))
				return nil
			}
			if e == nil {
				r.logger.Warn("dangling relation", zap.String("entry", k.String()))
				return nil
			}
			fetched[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("resolve relations: %w", err)
	}

	for i, k := range unique {
		for _, pos := range positions[k] {
			rels[pos].Entry = fetched[i]
		}
	}
	return nil
}
