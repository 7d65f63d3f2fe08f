// Package store owns the journal's SQLite file: schema creation, connection
// lifecycle, and transaction boundaries. Layers above talk to it through the
// Querier interface so that single reads and multi-table transactions share
// the same SQL surface.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/apperr"
)

const schemaSQL = `
CREATE TABLE Bodies (
	entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
	body     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE Dates (
	entry_id  INTEGER NOT NULL REFERENCES Bodies(entry_id),
	year      INTEGER NOT NULL,
	month     INTEGER NOT NULL,
	day       INTEGER NOT NULL,
	hour      INTEGER NOT NULL,
	minute    INTEGER NOT NULL,
	weekday   INTEGER NOT NULL,
	string    TEXT NOT NULL,
	last_edit TEXT NULL
);

CREATE TABLE Attachments (
	att_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id INTEGER NOT NULL REFERENCES Bodies(entry_id),
	filename TEXT NOT NULL,
	file     BLOB NOT NULL,
	added    TEXT NOT NULL
);

CREATE TABLE Relations (
	rel_id INTEGER PRIMARY KEY,
	child  INTEGER NOT NULL REFERENCES Bodies(entry_id),
	parent INTEGER NOT NULL REFERENCES Bodies(entry_id)
);

CREATE TABLE Tags (
	tag_id   INTEGER PRIMARY KEY,
	entry_id INTEGER NOT NULL REFERENCES Bodies(entry_id),
	tag      TEXT NOT NULL
);

CREATE INDEX idx_dates_entry ON Dates(entry_id);
CREATE INDEX idx_dates_string ON Dates(string);
CREATE INDEX idx_tags_entry ON Tags(entry_id);
CREATE INDEX idx_tags_tag ON Tags(tag);
CREATE INDEX idx_relations_child ON Relations(child);
CREATE INDEX idx_relations_parent ON Relations(parent);
`

// tableNames is the authoritative schema identity: a journal store contains
// exactly these tables.
var tableNames = []string{"Attachments", "Bodies", "Dates", "Relations", "Tags"}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Read paths use the store's connection directly; write paths receive a
// transaction-backed Querier from WithTx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Store wraps the SQLite connection to a single journal file.
type Store struct {
	conn *sql.DB
}

// Open opens an existing journal file or initializes a new one with the
// schema. A path that exists but is not a regular file fails with ErrNotAFile;
// an existing file whose table set is not the journal schema fails with
// ErrCorruptStore and is left untouched.
func Open(path string) (*Store, error) {
	if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("store: open %s: %w", path, apperr.ErrNotAFile)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	existing, err := listTables(conn)
	if err != nil {
		conn.Close()
		// A non-database file trips here with the driver's "not a database"
		// error; the file has not been written to.
		return nil, fmt.Errorf("store: %s: %v: %w", path, err, apperr.ErrCorruptStore)
	}

	if len(existing) == 0 {
		if _, err := conn.Exec(schemaSQL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: apply schema: %w", err)
		}
		return &Store{conn: conn}, nil
	}

	if !sameTables(existing, tableNames) {
		conn.Close()
		return nil, fmt.Errorf("store: %s has tables %v: %w", path, existing, apperr.ErrCorruptStore)
	}
	return &Store{conn: conn}, nil
}

// Close releases the connection. Safe to call more than once.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Read returns the shared connection for non-transactional reads.
func (s *Store) Read() Querier {
	return s.conn
}

// WithTx runs fn inside a transaction. On success the transaction commits;
// on error or context cancellation it rolls back and the error is returned.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func listTables(conn *sql.DB) ([]string, error) {
	rows, err := conn.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func sameTables(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
