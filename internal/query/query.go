// Package query implements a fluent query builder over content collections:
// AND-composed predicates, chained stable sorting, limit/offset pagination
// and optional per-row relation maps.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/graph"
	"github.com/agentic-research/contentgraph/internal/relations"
	"github.com/ohler55/ojg/jp"
	"go.uber.org/zap"
)

var ErrNoCollections = errors.New("query names no collections")

// Predicate filters entries.
type Predicate func(e *content.Entry) bool

// Engine creates queries against one store.
type Engine struct {
	store     content.Store
	relations *relations.Resolver
	logger    *zap.Logger
}

// NewEngine creates an Engine. rel may be nil when queries never ask for
// relations.
func NewEngine(store content.Store, rel *relations.Resolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, relations: rel, logger: logger}
}

// Query starts a builder over the named collections.
func (e *Engine) Query(collections ...string) *Builder {
	return &Builder{engine: e, collections: append([]string(nil), collections...)}
}

// Builder accumulates query state. It is mutable while being built; each
// terminal call runs against a snapshot, so a builder can be executed
// repeatedly and never memoizes results.
type Builder struct {
	engine *Engine

	collections   []string
	filters       []Predicate
	sorts         []Comparator
	limit         int
	hasLimit      bool
	offset        int
	withRelations bool
	relationDepth int
	err           error
}

// Result is the outcome of Get. Page, PageSize, HasNext and HasPrev are only
// set when a limit was given. Relations is keyed by "collection:id".
type Result struct {
	Entries   []*content.Entry             `json:"entries"`
	Total     int                          `json:"total"`
	Page      *int                         `json:"page,omitempty"`
	PageSize  *int                         `json:"pageSize,omitempty"`
	HasNext   *bool                        `json:"hasNext,omitempty"`
	HasPrev   *bool                        `json:"hasPrev,omitempty"`
	Relations map[string]graph.RelationMap `json:"relations,omitempty"`
}

// From replaces the collections to query.
func (b *Builder) From(collections ...string) *Builder {
	b.collections = append([]string(nil), collections...)
	return b
}

// Where appends a predicate; all predicates must hold.
func (b *Builder) Where(p Predicate) *Builder {
	if p != nil {
		b.filters = append(b.filters, p)
	}
	return b
}

// WhereField keeps entries whose field path yields a value equal to value.
func (b *Builder) WhereField(path string, value any) *Builder {
	x, err := compile(path)
	if err != nil {
		b.setErr(fmt.Errorf("where %q: %w", path, err))
		return b
	}
	return b.Where(func(e *content.Entry) bool {
		for _, v := range x.Get(e.Data) {
			if equalValues(v, value) {
				return true
			}
		}
		return false
	})
}

// WherePath keeps entries for which the JSONPath expression, evaluated
// against the entry data, yields at least one non-nil value.
// e.g. "$.tags[?(@ == 'go')]".
func (b *Builder) WherePath(expr string) *Builder {
	x, err := jp.ParseString(expr)
	if err != nil {
		b.setErr(fmt.Errorf("where path %q: %w", expr, err))
		return b
	}
	return b.Where(func(e *content.Entry) bool {
		_, ok := firstValue(x, e.Data)
		return ok
	})
}

// OrderBy appends a comparator. Earlier comparators take precedence;
// later ones only break ties.
func (b *Builder) OrderBy(c Comparator) *Builder {
	if c != nil {
		b.sorts = append(b.sorts, c)
	}
	return b
}

// OrderByField appends a sort on a field path. Missing values sort last.
func (b *Builder) OrderByField(path string, dir Direction) *Builder {
	x, err := compile(path)
	if err != nil {
		b.setErr(fmt.Errorf("order by %q: %w", path, err))
		return b
	}
	return b.OrderBy(fieldComparator(x, dir))
}

// Limit caps the page size. Negative values are treated as zero.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		n = 0
	}
	b.limit = n
	b.hasLimit = true
	return b
}

// Offset skips the first n matches. Negative values are treated as zero.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		n = 0
	}
	b.offset = n
	return b
}

// WithRelations attaches each result entry's relation map. A maxDepth above
// one also includes indirect relations up to that many hops.
func (b *Builder) WithRelations(include bool, maxDepth ...int) *Builder {
	b.withRelations = include
	b.relationDepth = 1
	if len(maxDepth) > 0 && maxDepth[0] > 0 {
		b.relationDepth = maxDepth[0]
	}
	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) snapshot() *Builder {
	q := *b
	q.collections = append([]string(nil), b.collections...)
	q.filters = append([]Predicate(nil), b.filters...)
	q.sorts = append([]Comparator(nil), b.sorts...)
	return &q
}

// Get runs the query.
func (b *Builder) Get(ctx context.Context) (*Result, error) {
	return b.snapshot().execute(ctx)
}

// First returns the first match, or nil when nothing matches.
func (b *Builder) First(ctx context.Context) (*content.Entry, error) {
	q := b.snapshot()
	q.limit, q.hasLimit = 1, true
	res, err := q.execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return res.Entries[0], nil
}

// All returns every match, ignoring limit and offset.
func (b *Builder) All(ctx context.Context) ([]*content.Entry, error) {
	q := b.snapshot()
	q.limit, q.hasLimit, q.offset = 0, false, 0
	q.withRelations = false
	res, err := q.execute(ctx)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// Count returns the number of matches before pagination.
func (b *Builder) Count(ctx context.Context) (int, error) {
	q := b.snapshot()
	q.withRelations = false
	res, err := q.execute(ctx)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

func (b *Builder) execute(ctx context.Context) (*Result, error) {
	if b.err != nil {
		return nil, b.err
	}
	entries, err := b.fetch(ctx)
	if err != nil {
		return nil, err
	}

	matched := entries[:0]
	for _, e := range entries {
		if b.matches(e) {
			matched = append(matched, e)
		}
	}
	total := len(matched)

	if len(b.sorts) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, c := range b.sorts {
				if r := c(matched[i], matched[j]); r != 0 {
					return r < 0
				}
			}
			return false
		})
	}

	start := min(b.offset, total)
	end := total
	if b.hasLimit {
		end = min(start+b.limit, total)
	}
	res := &Result{
		Entries: matched[start:end:end],
		Total:   total,
	}
	if b.hasLimit {
		page := 1
		if b.limit > 0 {
			page = b.offset/b.limit + 1
		}
		pageSize := b.limit
		hasNext := b.offset+b.limit < total
		hasPrev := b.offset > 0
		res.Page, res.PageSize, res.HasNext, res.HasPrev = &page, &pageSize, &hasNext, &hasPrev
	}

	if b.withRelations {
		res.Relations = b.attachRelations(ctx, res.Entries)
	}
	return res, nil
}

// fetch concatenates the entries of every named collection. Unknown
// collections count as empty unless all of them are unknown.
func (b *Builder) fetch(ctx context.Context) ([]*content.Entry, error) {
	if len(b.collections) == 0 {
		return nil, ErrNoCollections
	}
	var out []*content.Entry
	unknown := 0
	for _, c := range b.collections {
		list, err := b.engine.store.ListEntries(ctx, c)
		if errors.Is(err, content.ErrUnknownCollection) {
			unknown++
			b.engine.logger.Debug("query skips unknown collection", zap.String("collection", c))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", c, err)
		}
		out = append(out, list...)
	}
	if unknown == len(b.collections) {
		return nil, fmt.Errorf("query %v: %w", b.collections, content.ErrUnknownCollection)
	}
	return out, nil
}

// matches applies the filters in registration order, stopping at the first failure.
func (b *Builder) matches(e *content.Entry) bool {
	for _, p := range b.filters {
		if !p(e) {
			return false
		}
	}
	return true
}

func (b *Builder) attachRelations(ctx context.Context, entries []*content.Entry) map[string]graph.RelationMap {
	out := make(map[string]graph.RelationMap, len(entries))
	rel := b.engine.relations
	if rel == nil {
		b.engine.logger.Warn("relations requested but no relation resolver configured")
		return out
	}
	opts := rel.WithDepth(b.relationDepth)
	for _, e := range entries {
		m, err := rel.GetRelationsWith(ctx, opts, e.Collection, e.ID)
		if err != nil {
			b.engine.logger.Warn("relations unavailable",
				zap.String("entry", e.Key().String()),
				zap.Error(err))
			continue
		}
		out[e.Key().String()] = m
	}
	return out
}
