package query

import (
	"context"
	"testing"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/graph"
	"github.com/agentic-research/contentgraph/internal/ref"
	"github.com/agentic-research/contentgraph/internal/relations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() *content.MemoryStore {
	s := content.NewMemoryStore()
	add := func(c, id string, data map[string]any) {
		s.Add(&content.Entry{Collection: c, ID: id, Data: data})
	}
	add("blog", "a", map[string]any{"title": "Alpha", "date": "2024-03-01", "views": 10.0, "tags": []any{"go"}, "author": ref.New("authors", "jane")})
	add("blog", "b", map[string]any{"title": "Beta", "date": "2023-12-24", "views": 30.0, "tags": []any{"rust"}})
	add("blog", "c", map[string]any{"title": "Gamma", "views": 20.0, "tags": []any{"go", "db"}, "seo": map[string]any{"title": "G"}})
	add("docs", "intro", map[string]any{"title": "Intro", "date": "2024-01-15T10:00:00Z", "views": 10.0})
	add("authors", "jane", map[string]any{"title": "Jane Doe"})
	return s
}

func newEngine(s content.Store) *Engine {
	return NewEngine(s, relations.NewResolver(graph.NewCache(s), graph.DefaultOptions(), nil), nil)
}

func ids(entries []*content.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestQueryPagination(t *testing.T) {
	ctx := context.Background()
	e := newEngine(fixture())

	t.Run("offset past the end", func(t *testing.T) {
		res, err := e.Query("blog").Where(func(*content.Entry) bool { return true }).Limit(1).Offset(5).Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, res.Entries)
		assert.Equal(t, 3, res.Total)
		require.NotNil(t, res.HasNext)
		require.NotNil(t, res.HasPrev)
		assert.False(t, *res.HasNext)
		assert.True(t, *res.HasPrev)
	})

	t.Run("middle page", func(t *testing.T) {
		res, err := e.Query("blog").Limit(1).Offset(1).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(res.Entries))
		assert.Equal(t, 2, *res.Page)
		assert.Equal(t, 1, *res.PageSize)
		assert.True(t, *res.HasNext)
		assert.True(t, *res.HasPrev)
	})

	t.Run("first page", func(t *testing.T) {
		res, err := e.Query("blog").Limit(2).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(res.Entries))
		assert.Equal(t, 1, *res.Page)
		assert.True(t, *res.HasNext)
		assert.False(t, *res.HasPrev)
	})

	t.Run("no limit means no page info", func(t *testing.T) {
		res, err := e.Query("blog").Offset(1).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, ids(res.Entries))
		assert.Nil(t, res.Page)
		assert.Nil(t, res.PageSize)
		assert.Nil(t, res.HasNext)
		assert.Nil(t, res.HasPrev)
	})

	t.Run("negative inputs clamp to zero", func(t *testing.T) {
		res, err := e.Query("blog").Limit(-3).Offset(-1).Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, res.Entries)
		assert.Equal(t, 3, res.Total)
		assert.True(t, *res.HasNext)
	})
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	e := newEngine(fixture())

	t.Run("predicates are AND-ed", func(t *testing.T) {
		res, err := e.Query("blog").
			Where(func(x *content.Entry) bool { return x.Data["views"].(float64) >= 20 }).
			Where(func(x *content.Entry) bool { return x.ID != "b" }).
			Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(res.Entries))
		assert.Equal(t, 1, res.Total)
	})

	t.Run("where field", func(t *testing.T) {
		res, err := e.Query("blog").WhereField("views", 30).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(res.Entries))
	})

	t.Run("where field on nested path", func(t *testing.T) {
		res, err := e.Query("blog").WhereField("seo.title", "G").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(res.Entries))
	})

	t.Run("where field matches sequence elements", func(t *testing.T) {
		res, err := e.Query("blog").WhereField("tags[*]", "go").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(res.Entries))
	})

	t.Run("where path", func(t *testing.T) {
		res, err := e.Query("blog").WherePath("$.tags[?(@ == 'db')]").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(res.Entries))
	})

	t.Run("invalid path surfaces at execution", func(t *testing.T) {
		_, err := e.Query("blog").WherePath("$.tags[?(@ ==").Get(ctx)
		assert.Error(t, err)
	})
}

func TestQuerySorting(t *testing.T) {
	ctx := context.Background()
	e := newEngine(fixture())

	t.Run("dates descending, missing last", func(t *testing.T) {
		res, err := e.Query("blog", "docs").OrderByField("date", Desc).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "intro", "b", "c"}, ids(res.Entries))
	})

	t.Run("dates ascending, missing still last", func(t *testing.T) {
		res, err := e.Query("blog", "docs").OrderByField("date", Asc).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "intro", "a", "c"}, ids(res.Entries))
	})

	t.Run("later keys break ties", func(t *testing.T) {
		res, err := e.Query("blog", "docs").OrderByField("views", Asc).OrderBy(ByID(Desc)).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"intro", "a", "c", "b"}, ids(res.Entries))
	})

	t.Run("stable for equal keys", func(t *testing.T) {
		res, err := e.Query("blog", "docs").OrderByField("views", Asc).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "intro", "c", "b"}, ids(res.Entries))
	})

	t.Run("sort happens before pagination", func(t *testing.T) {
		res, err := e.Query("blog").OrderByField("views", Desc).Limit(1).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(res.Entries))
	})
}

func TestQueryCollections(t *testing.T) {
	ctx := context.Background()
	e := newEngine(fixture())

	t.Run("unknown collections are empty", func(t *testing.T) {
		n, err := e.Query("blog", "nope").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("all unknown is an error", func(t *testing.T) {
		_, err := e.Query("nope").Get(ctx)
		assert.ErrorIs(t, err, content.ErrUnknownCollection)
	})

	t.Run("no collections", func(t *testing.T) {
		_, err := e.Query().Get(ctx)
		assert.ErrorIs(t, err, ErrNoCollections)
	})

	t.Run("from replaces", func(t *testing.T) {
		all, err := e.Query("blog").From("docs").All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"intro"}, ids(all))
	})
}

func TestQueryTerminals(t *testing.T) {
	ctx := context.Background()
	e := newEngine(fixture())

	t.Run("first", func(t *testing.T) {
		got, err := e.Query("blog").OrderByField("views", Desc).Offset(1).First(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "c", got.ID)

		none, err := e.Query("blog").WhereField("title", "Nope").First(ctx)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("all ignores pagination", func(t *testing.T) {
		all, err := e.Query("blog").Limit(1).Offset(1).All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("count ignores pagination", func(t *testing.T) {
		n, err := e.Query("blog").Limit(1).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("builders can be re-executed", func(t *testing.T) {
		b := e.Query("blog").Limit(2)
		first, err := b.Get(ctx)
		require.NoError(t, err)
		b.Offset(2)
		second, err := b.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(first.Entries))
		assert.Equal(t, []string{"c"}, ids(second.Entries))
	})

	t.Run("results do not alias store order", func(t *testing.T) {
		_, err := e.Query("blog").OrderByField("views", Desc).Get(ctx)
		require.NoError(t, err)
		all, err := e.Query("blog").All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids(all))
	})
}

func TestQueryWithRelations(t *testing.T) {
	ctx := context.Background()
	e := newEngine(fixture())

	res, err := e.Query("blog").WhereField("title", "Alpha").WithRelations(true).Get(ctx)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	m, ok := res.Relations["blog:a"]
	require.True(t, ok)
	require.Len(t, m.References, 1)
	assert.Equal(t, "jane", m.References[0].ID)
	assert.Empty(t, m.Indirect)

	plain, err := e.Query("blog").Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, plain.Relations)
}

func danglingStore() *content.MemoryStore {
	s := content.NewMemoryStore()
	s.Add(
		&content.Entry{Collection: "authors", ID: "jane", Data: map[string]any{"title": "Jane Doe"}},
		&content.Entry{Collection: "blog", ID: "a", Data: map[string]any{"author": ref.New("authors", "jane")}},
		&content.Entry{Collection: "blog", ID: "b", Data: map[string]any{"author": ref.New("authors", "jane")}},
		&content.Entry{Collection: "blog", ID: "ghost", Data: map[string]any{"author": ref.New("authors", "nobody")}},
	)
	return s
}

func TestQueryDanglingReference(t *testing.T) {
	ctx := context.Background()
	e := newEngine(danglingStore())

	res, err := e.Query("blog").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "ghost"}, ids(res.Entries))
	assert.Equal(t, 3, res.Total)

	res, err = e.Query("blog").WithRelations(true).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "ghost"}, ids(res.Entries))
	m, ok := res.Relations["blog:ghost"]
	require.True(t, ok)
	require.Len(t, m.References, 1)
	assert.Equal(t, "nobody", m.References[0].ID)
}

func TestQueryWithIndirectRelations(t *testing.T) {
	ctx := context.Background()
	e := newEngine(danglingStore())

	res, err := e.Query("blog").WhereField("$.author.id", "jane").WithRelations(true, 2).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(res.Entries))

	m := res.Relations["blog:a"]
	require.Len(t, m.Indirect, 1)
	assert.Equal(t, "b", m.Indirect[0].ID)
	assert.Equal(t, graph.TypeIndirect, m.Indirect[0].Type)
	assert.Equal(t, 2, m.Indirect[0].Depth)
	for _, rel := range m.Indirect {
		assert.LessOrEqual(t, rel.Depth, 2)
	}
}

func TestQueryRelationsUseResolverOptions(t *testing.T) {
	ctx := context.Background()
	s := content.NewMemoryStore()
	s.Add(
		&content.Entry{Collection: "docs", ID: "a", Data: map[string]any{}},
		&content.Entry{Collection: "docs", ID: "b", Data: map[string]any{"section": "a"}},
	)
	opts := graph.DefaultOptions()
	opts.ParentField = "section"
	e := NewEngine(s, relations.NewResolver(graph.NewCache(s), opts, nil), nil)

	res, err := e.Query("docs").WithRelations(true).Get(ctx)
	require.NoError(t, err)
	require.Len(t, res.Relations["docs:a"].Children, 1)
	assert.Equal(t, "b", res.Relations["docs:a"].Children[0].ID)
	require.Len(t, res.Relations["docs:b"].Parent, 1)

	res, err = e.Query("docs").WithRelations(true, 2).Get(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Relations["docs:a"].Children, 1)
}

func TestQueryWithRelationsNoResolver(t *testing.T) {
	e := NewEngine(fixture(), nil, nil)
	res, err := e.Query("blog").WithRelations(true, 2).Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
	assert.Empty(t, res.Relations)
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	s := fixture()

	got, err := Find(ctx, s, "authors", "jane")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", got.Data["title"])

	missing, err := Find(ctx, s, "authors", "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first, err := FindWhere(ctx, s, "blog", func(e *content.Entry) bool { return e.Data["views"].(float64) > 15 })
	require.NoError(t, err)
	assert.Equal(t, "b", first.ID)

	all, err := FindAll(ctx, s, "blog", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
