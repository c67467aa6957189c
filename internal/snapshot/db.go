// Package snapshot records an agent's subtree into a SQLite file and serves
// checks from that recording, so a configuration can be developed and tested
// without the device.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is an open snapshot file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the snapshot at path, creating it and its parent directory if
// needed, and brings the schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := connect(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db, false); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// OpenExisting opens a snapshot for reading. Unlike Open it never creates or
// migrates anything: the file must exist and carry the current schema.
func OpenExisting(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	db, err := connect(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func connect(ctx context.Context, path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snapshot: %w", err)
	}
	return db, nil
}

// Close closes the snapshot file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Reset drops every recording by rolling the schema back and reapplying it.
func (s *Store) Reset(ctx context.Context) error {
	if err := migrate(ctx, s.db, true); err != nil {
		return fmt.Errorf("reset snapshot: %w", err)
	}
	if err := migrate(ctx, s.db, false); err != nil {
		return fmt.Errorf("reset snapshot: %w", err)
	}
	return nil
}
