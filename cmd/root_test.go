package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeContent lays out a small content directory and a config naming it.
func writeContent(t *testing.T) (configFile, dir string) {
	t.Helper()
	root := t.TempDir()
	dir = filepath.Join(root, "content")
	files := map[string]string{
		"authors/jane.yaml": "title: Jane Doe\n",
		"blog/post1.md":     "---\ntitle: One\nviews: 5\nauthor:\n  collection: authors\n  id: jane\n---\nHello.\n",
		"blog/post2.json":   `{"title": "Two", "views": 9, "author": {"collection": "authors", "id": "jane"}}`,
		"blog/post3.yaml":   "title: Three\nviews: 7\nparent: post1\n",
	}
	for p, body := range files {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	configFile = filepath.Join(root, "contentgraph.hcl")
	cfg := `
log_level = "error"

collection "authors" {
  pages = true
  url_prefix = "people"
}
`
	require.NoError(t, os.WriteFile(configFile, []byte(cfg), 0o644))
	return configFile, dir
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	cfg, dir := writeContent(t)

	out, err := run(t, "--config", cfg, "--content", dir, "query", "blog", "--limit", "1", "--offset", "5")
	require.NoError(t, err)
	var res struct {
		Entries []content.Entry `json:"entries"`
		Total   int             `json:"total"`
		HasNext bool            `json:"hasNext"`
		HasPrev bool            `json:"hasPrev"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Entries)
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.HasNext)
	assert.True(t, res.HasPrev)

	out, err = run(t, "--config", cfg, "--content", dir, "query", "blog", "--order-by", "views", "--desc")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "post2", res.Entries[0].ID)

	out, err = run(t, "--config", cfg, "--content", dir, "query", "blog", "--where", "$.parent", "--count")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 1}`, out)
}

func TestRelationsCommand(t *testing.T) {
	cfg, dir := writeContent(t)

	out, err := run(t, "--config", cfg, "--content", dir, "relations", "authors", "jane", "--types", "referenced-by")
	require.NoError(t, err)
	var m struct {
		References   []map[string]any `json:"references"`
		ReferencedBy []map[string]any `json:"referencedBy"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Empty(t, m.References)
	require.Len(t, m.ReferencedBy, 2)
	assert.Equal(t, "author", m.ReferencedBy[0]["field"])

	_, err = run(t, "--config", cfg, "--content", dir, "relations", "authors", "nobody")
	assert.ErrorIs(t, err, content.ErrNotFound)

	_, err = run(t, "--config", cfg, "--content", dir, "relations", "authors", "jane", "--types", "cousin")
	assert.ErrorContains(t, err, "unknown relation type")

	out, err = run(t, "--config", cfg, "--content", dir, "relations", "blog", "post1", "--all", "--resolve")
	require.NoError(t, err)
	var all []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.NotEmpty(t, all)
	assert.Equal(t, "jane", all[0]["id"])
	assert.NotNil(t, all[0]["entry"])
}

func TestResolveCommand(t *testing.T) {
	cfg, dir := writeContent(t)

	out, err := run(t, "--config", cfg, "--content", dir, "resolve", "blog", "post1")
	require.NoError(t, err)
	var e content.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	author := e.Data["author"].(map[string]any)
	assert.Equal(t, "Jane Doe", author["name"])
	assert.Equal(t, "/people/jane", author["url"])
	assert.Equal(t, "Hello.", e.Data["body"])

	_, err = run(t, "--config", cfg, "--content", dir, "resolve", "blog", "nope")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestGraphCommand(t *testing.T) {
	cfg, dir := writeContent(t)

	out, err := run(t, "--config", cfg, "--content", dir, "graph", "--indirect")
	require.NoError(t, err)
	var stats struct {
		TotalEntries   int  `json:"totalEntries"`
		ForwardEdges   int  `json:"forwardEdges"`
		HierarchyEdges int  `json:"hierarchyEdges"`
		Options        struct {
			IncludeIndirect bool `json:"includeIndirect"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 4, stats.TotalEntries)
	assert.Equal(t, 2, stats.ForwardEdges)
	assert.Equal(t, 1, stats.HierarchyEdges)
	assert.True(t, stats.Options.IncludeIndirect)
}

func TestImportThenQuerySQLite(t *testing.T) {
	cfg, dir := writeContent(t)
	dbPath := filepath.Join(t.TempDir(), "content.db")

	out, err := run(t, "--config", cfg, "import", dir, dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 entries from 2 collections")

	out, err = run(t, "--config", cfg, "--db", dbPath, "resolve", "blog", "post2")
	require.NoError(t, err)
	var e content.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, "Jane Doe", e.Data["author"].(map[string]any)["name"])
}

func TestSQLCommand(t *testing.T) {
	cfg, dir := writeContent(t)

	out, err := run(t, "--config", cfg, "--content", dir, "sql", "SELECT source, field FROM refs WHERE target = 'authors:jane' ORDER BY source")
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"source": "blog:post1", "field": "author"},
		{"source": "blog:post2", "field": "author"}
	]`, out)
}

func TestInvalidConfig(t *testing.T) {
	cfg, _ := writeContent(t)
	_, err := run(t, "--config", cfg, "query", "blog")
	assert.ErrorContains(t, err, "invalid config")

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.hcl"), "query", "blog")
	assert.ErrorContains(t, err, "read config")
}

func TestConfiguredParentField(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "content", "docs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("title: A\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("title: B\nsection: a\n"), 0o644))
	cfg := filepath.Join(root, "contentgraph.hcl")
	require.NoError(t, os.WriteFile(cfg, []byte(`
content_dir = "`+filepath.Join(root, "content")+`"
log_level   = "error"

graph {
  parent_field = "section"
}
`), 0o644))

	out, err := run(t, "--config", cfg, "relations", "docs", "a")
	require.NoError(t, err)
	var m struct {
		Children []map[string]any `json:"children"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	require.Len(t, m.Children, 1)

	out, err = run(t, "--config", cfg, "query", "docs", "--relations", "1")
	require.NoError(t, err)
	var res struct {
		Relations map[string]struct {
			Children []map[string]any `json:"children"`
		} `json:"relations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Relations["docs:a"].Children, 1)
	assert.Equal(t, "b", res.Relations["docs:a"].Children[0]["id"])

	out, err = run(t, "--config", cfg, "relations", "docs", "b", "--all", "--depth", "2")
	require.NoError(t, err)
	var all []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Empty(t, all)
}
