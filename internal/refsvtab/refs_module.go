// Package refsvtab exposes the edges of a relationship graph to SQL as the
// content_refs virtual table, so reference questions can be answered with
// ordinary SELECTs, joins and aggregates.
//
//	CREATE VIRTUAL TABLE refs USING content_refs(<graph id>);
//	SELECT source, field FROM refs WHERE target = 'authors:jane';
//
// Columns: source, field, target, type. source and target are
// "collection:id" keys; type is "reference" or "parent".
package refsvtab

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/graph"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name passed to USING.
const ModuleName = "content_refs"

// singleton holds the one RefsModule registered with the SQLite driver.
var (
	once      sync.Once
	singleton *RefsModule
	initErr   error
	nextID    atomic.Uint64
)

// RefsModule implements vtab.Module. It is a process-wide singleton because
// modernc.org/sqlite registers modules globally (driver-level, not per-DB).
type RefsModule struct {
	mu sync.RWMutex
	// graphs maps the id passed to CREATE VIRTUAL TABLE to a graph snapshot.
	graphs map[string]*graph.RelationshipGraph
}

// Register registers the content_refs module with the global SQLite driver.
// Safe to call multiple times; only the first call registers.
func Register() (*RefsModule, error) {
	once.Do(func() {
		singleton = &RefsModule{
			graphs: make(map[string]*graph.RelationshipGraph),
		}
		// db parameter is unused by the engine; pass nil.
		if err := vtab.RegisterModule(nil, ModuleName, singleton); err != nil {
			initErr = fmt.Errorf("refsvtab: register module: %w", err)
			singleton = nil
		}
	})
	return singleton, initErr
}

// RegisterGraph makes g available under id.
func (m *RefsModule) RegisterGraph(id string, g *graph.RelationshipGraph) {
	m.mu.Lock()
	m.graphs[id] = g
	m.mu.Unlock()
}

// UnregisterGraph forgets id.
func (m *RefsModule) UnregisterGraph(id string) {
	m.mu.Lock()
	delete(m.graphs, id)
	m.mu.Unlock()
}

// DB is an in-memory SQLite database holding a refs table over one graph.
type DB struct {
	*sql.DB
	id string
}

// Open creates an in-memory database with a virtual table named table over g.
func Open(ctx context.Context, g *graph.RelationshipGraph, table string) (*DB, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("refsvtab: invalid table name %q", table)
	}
	mod, err := Register()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("refsvtab: open: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	id := fmt.Sprintf("graph_%d", nextID.Add(1))
	mod.RegisterGraph(id, g)

	query := fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s)", table, ModuleName, id)
	if _, err := db.ExecContext(ctx, query); err != nil {
		mod.UnregisterGraph(id)
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("refsvtab: create %s: %w", table, err)
	}
	return &DB{DB: db, id: id}, nil
}

// Close closes the database and releases the graph.
func (d *DB) Close() error {
	if mod, err := Register(); err == nil && mod != nil {
		mod.UnregisterGraph(d.id)
	}
	return d.DB.Close()
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// vtab.Module
// ---------------------------------------------------------------------------

func (m *RefsModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	// argv[0] = module name, argv[1] = database name, argv[2] = table name,
	// argv[3]... = arguments inside ().
	if len(args) < 4 {
		return nil, fmt.Errorf("%s: missing graph id argument (expected USING %s(id))", ModuleName, ModuleName)
	}
	id := strings.TrimSpace(args[3])

	m.mu.RLock()
	g, ok := m.graphs[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: unknown graph id %q", ModuleName, id)
	}

	if err := ctx.Declare("CREATE TABLE x(source TEXT, field TEXT, target TEXT, type TEXT)"); err != nil {
		return nil, err
	}
	return &refsTable{graph: g}, nil
}

func (m *RefsModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

// ---------------------------------------------------------------------------
// vtab.Table
// ---------------------------------------------------------------------------

const (
	colSource = iota
	colField
	colTarget
	colType
)

const (
	idxScan = iota
	idxSource
	idxTarget
)

type refsTable struct {
	graph *graph.RelationshipGraph
}

func (t *refsTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Op != vtab.OpEQ {
			continue
		}
		switch c.Column {
		case colSource:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = idxSource
			info.EstimatedCost = 1
			info.EstimatedRows = 10
			return nil
		case colTarget:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = idxTarget
			info.EstimatedCost = 1
			info.EstimatedRows = 10
			return nil
		}
	}
	// Full scan.
	info.IdxNum = idxScan
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *refsTable) Open() (vtab.Cursor, error) {
	return &refsCursor{table: t}, nil
}

func (t *refsTable) Disconnect() error { return nil }
func (t *refsTable) Destroy() error    { return nil }

// ---------------------------------------------------------------------------
// vtab.Cursor
// ---------------------------------------------------------------------------

type refsRow struct {
	source string
	field  string
	target string
	typ    string
}

type refsCursor struct {
	table *refsTable
	rows  []refsRow
	pos   int
}

func (c *refsCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0
	g := c.table.graph

	switch idxNum {
	case idxSource:
		k, ok := parseKey(vals[0])
		if !ok {
			return nil
		}
		c.loadSource(g, k)
	case idxTarget:
		k, ok := parseKey(vals[0])
		if !ok {
			return nil
		}
		c.loadTarget(g, k)
	default:
		for _, k := range g.Keys() {
			c.loadSource(g, k)
		}
	}
	return nil
}

// loadSource emits the outgoing edges of k: its references, then its parent.
func (c *refsCursor) loadSource(g *graph.RelationshipGraph, k content.Key) {
	for _, r := range g.ForwardEdges(k) {
		c.rows = append(c.rows, refsRow{source: k.String(), field: r.Field, target: r.Key().String(), typ: string(r.Type)})
	}
	if p := g.Hierarchy(k).Parent; p != nil {
		c.rows = append(c.rows, refsRow{source: k.String(), field: g.Options.ParentField, target: p.String(), typ: string(graph.TypeParent)})
	}
}

// loadTarget emits the edges pointing at k. Dangling targets are not in the
// backward index, so they fall back to a scan.
func (c *refsCursor) loadTarget(g *graph.RelationshipGraph, k content.Key) {
	if !g.Has(k) {
		want := k.String()
		for _, src := range g.Keys() {
			for _, r := range g.ForwardEdges(src) {
				if r.Key().String() == want {
					c.rows = append(c.rows, refsRow{source: src.String(), field: r.Field, target: want, typ: string(r.Type)})
				}
			}
		}
		return
	}
	for _, r := range g.BackwardEdges(k) {
		c.rows = append(c.rows, refsRow{source: r.Key().String(), field: r.Field, target: k.String(), typ: string(graph.TypeReference)})
	}
	for _, child := range g.Hierarchy(k).Children {
		c.rows = append(c.rows, refsRow{source: child.String(), field: g.Options.ParentField, target: k.String(), typ: string(graph.TypeParent)})
	}
}

func parseKey(v vtab.Value) (content.Key, bool) {
	s, ok := v.(string)
	if !ok {
		return content.Key{}, false
	}
	collection, id, ok := strings.Cut(s, ":")
	if !ok {
		return content.Key{}, false
	}
	return content.Key{Collection: collection, ID: id}, true
}

func (c *refsCursor) Next() error {
	c.pos++
	return nil
}

func (c *refsCursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *refsCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	row := c.rows[c.pos]
	switch col {
	case colSource:
		return row.source, nil
	case colField:
		return row.field, nil
	case colTarget:
		return row.target, nil
	case colType:
		return row.typ, nil
	default:
		return nil, nil
	}
}

func (c *refsCursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *refsCursor) Close() error {
	c.rows = nil
	return nil
}
