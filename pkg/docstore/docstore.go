// Package docstore is a small document store over SQLite. Records are stored
// as JSON bodies keyed by (collection, natural key), and writes are upserts,
// so replaying a harvest converges instead of duplicating.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"pinharvest/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT NOT NULL,
	key         TEXT NOT NULL,
	body        TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, key)
);
`

// Store holds JSON documents addressed by collection and natural key.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path with production-safe pragmas.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewPersistenceError("failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to open database", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.NewPersistenceError(fmt.Sprintf("failed to apply %s", p), err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewPersistenceError("failed to create schema", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewPersistenceError("database unreachable", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for testing. MaxOpenConns(1) keeps all
// queries on the one connection that holds the in-memory database; cleanup
// is registered on the test.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("docstore.OpenMemory: %v", err)
	}
	store.db.SetMaxOpenConns(1)
	t.Cleanup(func() { store.Close() })
	return store
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes the document under (collection, key), replacing any earlier
// version. Same key, same logical item; rewrites converge.
func (s *Store) Upsert(ctx context.Context, collection, key string, doc map[string]any) error {
	if collection == "" || key == "" {
		return errors.NewPersistenceError("document needs a collection and a key", nil)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewPersistenceError("failed to encode document", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key)
		DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, key, string(body), time.Now().UTC(),
	)
	if err != nil {
		return errors.NewPersistenceError("failed to upsert document", err)
	}
	return nil
}

// Find loads one document by natural key. Missing documents return a
// not_found error.
func (s *Store) Find(ctx context.Context, collection, key string) (map[string]any, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("no document %s/%s", collection, key))
	}
	if err != nil {
		return nil, errors.NewPersistenceError("failed to load document", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, errors.NewPersistenceError("failed to decode document", err)
	}
	return doc, nil
}

// Keys lists the natural keys stored in a collection.
func (s *Store) Keys(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM documents WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.NewPersistenceError("failed to scan key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, errors.NewPersistenceError("failed to count documents", err)
	}
	return n, nil
}

// HasKey reports whether a document exists, for cross-run deduplication.
func (s *Store) HasKey(collection, key string) bool {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&one)
	return err == nil
}
