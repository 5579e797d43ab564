// Package store provides the persistent conditional-GET / last-seen-id
// cache: a single SQLite table keyed by slug_url.
package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/feedpipeline/feedpipe/internal/model"
)

// Store wraps the SQLite connection backing the cache table.
type Store struct {
	path string
	conn *sql.DB
}

// Open creates or reuses the SQLite database at path and ensures the
// cache table exists.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{path: path, conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cache (
		slug_url      TEXT PRIMARY KEY,
		last_seen_id  TEXT,
		etag          TEXT,
		last_modified TEXT
	);`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Fetch returns the cache row for slugURL, or nil if no row exists.
func (s *Store) Fetch(slugURL string) (*model.CacheEntry, error) {
	row := s.conn.QueryRow(
		`SELECT slug_url, last_seen_id, etag, last_modified FROM cache WHERE slug_url = ?`,
		slugURL,
	)

	var (
		entry        model.CacheEntry
		lastSeenID   sql.NullString
		etag         sql.NullString
		lastModified sql.NullString
	)
	if err := row.Scan(&entry.SlugURL, &lastSeenID, &etag, &lastModified); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cache row %q: %w", slugURL, err)
	}
	entry.LastSeenID = lastSeenID.String
	entry.ETag = etag.String
	entry.LastModified = lastModified.String
	return &entry, nil
}

// UpdateValidators upserts the ETag/Last-Modified validators for slugURL,
// leaving last_seen_id untouched.
func (s *Store) UpdateValidators(slugURL, etag, lastModified string) error {
	_, err := s.conn.Exec(`
		INSERT INTO cache (slug_url, etag, last_modified) VALUES (?, ?, ?)
		ON CONFLICT(slug_url) DO UPDATE SET etag = excluded.etag, last_modified = excluded.last_modified
	`, slugURL, etag, lastModified)
	if err != nil {
		return fmt.Errorf("update validators for %q: %w", slugURL, err)
	}
	return nil
}

// UpdateLastSeen upserts the last-seen entry id for slugURL, leaving the
// validator columns untouched.
func (s *Store) UpdateLastSeen(slugURL, id string) error {
	_, err := s.conn.Exec(`
		INSERT INTO cache (slug_url, last_seen_id) VALUES (?, ?)
		ON CONFLICT(slug_url) DO UPDATE SET last_seen_id = excluded.last_seen_id
	`, slugURL, id)
	if err != nil {
		return fmt.Errorf("update last_seen_id for %q: %w", slugURL, err)
	}
	return nil
}

// Reset destroys the backing database file and recreates an empty schema.
// Used by the scheduler on cold starts.
func (s *Store) Reset() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close cache db before reset: %w", err)
	}
	if s.path != ":memory:" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache db: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("reopen cache db: %w", err)
	}
	s.conn = conn
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("set wal mode: %w", err)
	}
	return s.migrate()
}
