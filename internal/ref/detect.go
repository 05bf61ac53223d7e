package ref

import "github.com/agentic-research/contentgraph/internal/content"

// Reference is a pointer from one entry to another.
// In entry data it appears as the map {"collection": ..., "id": ...};
// loaders that build data in Go may also embed a Reference value directly.
type Reference struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Key returns the identity the reference points at.
func (r Reference) Key() content.Key {
	return content.Key{Collection: r.Collection, ID: r.ID}
}

// New returns the map form of a reference, as it appears in decoded content.
func New(collection, id string) map[string]any {
	return map[string]any{"collection": collection, "id": id}
}

// IsReference reports whether v is reference-shaped: a map carrying exactly
// string-typed "collection" and "id" keys and nothing else, or a Reference value.
// Any extra key disqualifies the map; resolved entries are never references.
func IsReference(v any) bool {
	_, ok := AsReference(v)
	return ok
}

// AsReference returns the reference v denotes, if any.
func AsReference(v any) (Reference, bool) {
	switch t := v.(type) {
	case Reference:
		return t, true
	case *Reference:
		if t == nil {
			return Reference{}, false
		}
		return *t, true
	case map[string]any:
		if len(t) != 2 {
			return Reference{}, false
		}
		c, ok := t["collection"].(string)
		if !ok {
			return Reference{}, false
		}
		id, ok := t["id"].(string)
		if !ok {
			return Reference{}, false
		}
		return Reference{Collection: c, ID: id}, true
	}
	return Reference{}, false
}

// IsReferenceSequence reports whether v is a non-empty sequence whose every
// element is a reference.
func IsReferenceSequence(v any) bool {
	switch t := v.(type) {
	case []Reference:
		return len(t) > 0
	case []any:
		if len(t) == 0 {
			return false
		}
		for _, el := range t {
			if !IsReference(el) {
				return false
			}
		}
		return true
	}
	return false
}

// AsReferenceSequence returns the references of a reference sequence.
func AsReferenceSequence(v any) ([]Reference, bool) {
	if !IsReferenceSequence(v) {
		return nil, false
	}
	if refs, ok := v.([]Reference); ok {
		return refs, true
	}
	seq := v.([]any)
	out := make([]Reference, len(seq))
	for i, el := range seq {
		out[i], _ = AsReference(el)
	}
	return out, true
}
