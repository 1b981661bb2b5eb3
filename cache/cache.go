// Package cache persists rewrite outcomes keyed by source content, so
// unchanged units skip the pipeline entirely. Entries are canonical CBOR
// blobs in a single-table SQLite database; rejected units cache their
// diagnostic batch, so a repeated check replays the exact rejection.
package cache

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/slotlang/slotc/compiler"
)

// ErrMiss indicates the requested entry is not in the store.
var ErrMiss = errors.New("cache miss")

// Store is a content-addressed cache of rewrite outcomes backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens the cache database at path, creating the file and its parent
// directory as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		key    TEXT PRIMARY KEY,
		engine TEXT NOT NULL,
		entry  BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get looks up the cached outcome for src. It returns ErrMiss when no entry
// exists under the current engine version.
func (s *Store) Get(src string) (*Entry, error) {
	k := Key(src)

	var blob []byte
	err := s.db.QueryRow("SELECT entry FROM entries WHERE key = ?", hex.EncodeToString(k[:])).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	return UnmarshalEntry(blob)
}

// Put records the rewrite outcome for src, replacing any previous entry
// under the same key.
func (s *Store) Put(src, output string, diags compiler.DiagnosticList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := NewEntry(output, diags)
	blob, err := MarshalEntry(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	k := Key(src)
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO entries (key, engine, entry) VALUES (?, ?, ?)",
		hex.EncodeToString(k[:]), e.Engine, blob,
	)
	if err != nil {
		return fmt.Errorf("saving entry: %w", err)
	}

	return nil
}

// Purge deletes entries written by other engine versions and reports how
// many rows went. Their keys can never be derived again, so the rows are
// unreachable garbage.
func (s *Store) Purge() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entries WHERE engine != ?", compiler.EngineVersion)
	if err != nil {
		return 0, fmt.Errorf("purging entries: %w", err)
	}
	return res.RowsAffected()
}

// Len reports the number of entries in the store.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}
