package content

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("entry not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Key is the globally unique identity of an entry.
type Key struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// String renders the key as "collection:id".
func (k Key) String() string {
	return k.Collection + ":" + k.ID
}

// Entry is one content record.
// Data may hold nested maps, sequences, primitives and references anywhere
// in its structure. Entries are created by a Store and never mutated afterwards.
type Entry struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
}

// Key returns the identity of the entry.
func (e *Entry) Key() Key {
	return Key{Collection: e.Collection, ID: e.ID}
}

// Field returns a top-level data value.
func (e *Entry) Field(name string) (any, bool) {
	if e == nil || e.Data == nil {
		return nil, false
	}
	v, ok := e.Data[name]
	return v, ok
}

// Store is the content loading capability the engine consumes.
// Implementations are static for the lifetime of the process.
type Store interface {
	// Collections lists every collection the store knows about.
	Collections(ctx context.Context) ([]string, error)
	// ListEntries returns the entries of a collection in a stable order.
	// Unknown collections yield an error wrapping ErrUnknownCollection.
	ListEntries(ctx context.Context, collection string) ([]*Entry, error)
	// GetEntry returns the entry or (nil, nil) when it does not exist.
	GetEntry(ctx context.Context, collection, id string) (*Entry, error)
}
