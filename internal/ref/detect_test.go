package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReference(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"map form", map[string]any{"collection": "authors", "id": "jane"}, true},
		{"constructor", New("authors", "jane"), true},
		{"value", Reference{Collection: "authors", ID: "jane"}, true},
		{"pointer", &Reference{Collection: "authors", ID: "jane"}, true},
		{"nil pointer", (*Reference)(nil), false},
		{"extra key", map[string]any{"collection": "authors", "id": "jane", "name": "Jane"}, false},
		{"missing id", map[string]any{"collection": "authors", "x": "jane"}, false},
		{"non-string id", map[string]any{"collection": "authors", "id": 7}, false},
		{"resolved payload", map[string]any{"collection": "authors", "id": "jane", "_resolved": true}, false},
		{"string", "authors/jane", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReference(tt.v))
		})
	}
}

func TestIsReferenceSequence(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"all references", []any{New("tags", "go"), New("tags", "graphs")}, true},
		{"typed slice", []Reference{{Collection: "tags", ID: "go"}}, true},
		{"empty", []any{}, false},
		{"empty typed", []Reference{}, false},
		{"mixed", []any{New("tags", "go"), "graphs"}, false},
		{"strings", []any{"go", "graphs"}, false},
		{"single reference", New("tags", "go"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReferenceSequence(tt.v))
		})
	}
}

func TestAsReferenceSequence(t *testing.T) {
	refs, ok := AsReferenceSequence([]any{New("tags", "go"), Reference{Collection: "tags", ID: "db"}})
	assert.True(t, ok)
	assert.Equal(t, []Reference{{Collection: "tags", ID: "go"}, {Collection: "tags", ID: "db"}}, refs)

	_, ok = AsReferenceSequence([]any{1, 2})
	assert.False(t, ok)
}

func TestReferenceKey(t *testing.T) {
	r := Reference{Collection: "authors", ID: "jane"}
	assert.Equal(t, "authors:jane", r.Key().String())
}
