package query

import (
	"context"

	"github.com/agentic-research/contentgraph/internal/content"
)

// Find returns the entry or nil when it does not exist.
func (e *Engine) Find(ctx context.Context, collection, id string) (*content.Entry, error) {
	return e.store.GetEntry(ctx, collection, id)
}

// FindWhere returns the first entry of collection matching p, or nil.
func (e *Engine) FindWhere(ctx context.Context, collection string, p Predicate) (*content.Entry, error) {
	return e.Query(collection).Where(p).First(ctx)
}

// FindAll returns every entry of collection matching p; a nil p matches all.
func (e *Engine) FindAll(ctx context.Context, collection string, p Predicate) ([]*content.Entry, error) {
	return e.Query(collection).Where(p).All(ctx)
}

// Find looks up one entry directly in store.
func Find(ctx context.Context, store content.Store, collection, id string) (*content.Entry, error) {
	return NewEngine(store, nil, nil).Find(ctx, collection, id)
}

// FindWhere is Engine.FindWhere over store.
func FindWhere(ctx context.Context, store content.Store, collection string, p Predicate) (*content.Entry, error) {
	return NewEngine(store, nil, nil).FindWhere(ctx, collection, p)
}

// FindAll is Engine.FindAll over store.
func FindAll(ctx context.Context, store content.Store, collection string, p Predicate) ([]*content.Entry, error) {
	return NewEngine(store, nil, nil).FindAll(ctx, collection, p)
}
