package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const entriesSchema = `
CREATE TABLE IF NOT EXISTS entries (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

// SQLiteStore implements Store over a SQLite database holding one row per
// entry in the entries table, with the entry data stored as a JSON object.
// The database is opened read-only; content is static per process.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore opens the database at dbPath in read-only mode.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(4)
	if err := db.Ping(); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Collections implements Store.
func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT collection FROM entries GROUP BY collection ORDER BY MIN(rowid)")
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ListEntries implements Store. Rows come back in insertion order.
func (s *SQLiteStore) ListEntries(ctx context.Context, collection string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data FROM entries WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return nil, fmt.Errorf("query entries %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []*Entry
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e, err := decodeEntry(collection, id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if len(out) == 0 {
		// No rows either means an empty or an unknown collection;
		// the schema has no separate collection table so both are unknown.
		return nil, fmt.Errorf("list %q: %w", collection, ErrUnknownCollection)
	}
	return out, nil
}

// GetEntry implements Store.
func (s *SQLiteStore) GetEntry(ctx context.Context, collection, id string) (*Entry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM entries WHERE collection = ? AND id = ?", collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entry %s:%s: %w", collection, id, err)
	}
	return decodeEntry(collection, id, raw)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeEntry(collection, id, raw string) (*Entry, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("parse entry %s:%s: %w", collection, id, err)
	}
	return &Entry{Collection: collection, ID: id, Data: data}, nil
}

// WriteSQLite creates (or appends to) a database at dbPath holding entries,
// in the layout OpenSQLiteStore reads. All rows are written in one transaction.
func WriteSQLite(ctx context.Context, dbPath string, entries []*Entry) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	if _, err := db.ExecContext(ctx, entriesSchema); err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore (no-op if committed)

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO entries (collection, id, data) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare entries insert: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	for _, e := range entries {
		data := e.Data
		if data == nil {
			data = map[string]any{}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, e.Collection, e.ID, string(raw)); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Key(), err)
		}
	}
	return tx.Commit()
}

// Verify interface compliance at compile time.
var _ Store = (*SQLiteStore)(nil)
