package content

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T, entries ...*Entry) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "content.db")
	require.NoError(t, WriteSQLite(context.Background(), dbPath, entries))
	return dbPath
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dbPath := createTestDB(t,
		&Entry{Collection: "blog", ID: "hello", Data: map[string]any{
			"title":  "Hello",
			"author": map[string]any{"collection": "authors", "id": "jane"},
			"views":  42,
		}},
		&Entry{Collection: "authors", ID: "jane", Data: map[string]any{"name": "Jane Doe"}},
		&Entry{Collection: "blog", ID: "second", Data: nil},
	)

	s, err := OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	t.Run("collections in first-seen order", func(t *testing.T) {
		cols, err := s.Collections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"blog", "authors"}, cols)
	})

	t.Run("list entries", func(t *testing.T) {
		list, err := s.ListEntries(ctx, "blog")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "hello", list[0].ID)
		assert.Equal(t, "second", list[1].ID)
		assert.Equal(t, map[string]any{}, list[1].Data)
	})

	t.Run("data round-trips as JSON", func(t *testing.T) {
		e, err := s.GetEntry(ctx, "blog", "hello")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "Hello", e.Data["title"])
		assert.Equal(t, float64(42), e.Data["views"])
		assert.Equal(t, map[string]any{"collection": "authors", "id": "jane"}, e.Data["author"])
	})

	t.Run("missing entry", func(t *testing.T) {
		e, err := s.GetEntry(ctx, "blog", "nope")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := s.ListEntries(ctx, "docs")
		assert.ErrorIs(t, err, ErrUnknownCollection)
	})
}

func TestSQLiteStoreReplace(t *testing.T) {
	ctx := context.Background()
	dbPath := createTestDB(t, &Entry{Collection: "blog", ID: "a", Data: map[string]any{"v": 1}})
	require.NoError(t, WriteSQLite(ctx, dbPath, []*Entry{{Collection: "blog", ID: "a", Data: map[string]any{"v": 2}}}))

	s, err := OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	list, err := s.ListEntries(ctx, "blog")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, float64(2), list[0].Data["v"])
}

func TestOpenSQLiteStoreMissing(t *testing.T) {
	_, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
