package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	up      string
	down    string
}

func loadMigrations() ([]*migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	byVersion := make(map[int]*migration)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		var version int
		var suffix string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &suffix); err != nil {
			continue
		}
		if byVersion[version] == nil {
			byVersion[version] = &migration{version: version}
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			byVersion[version].up = string(content)
		case strings.HasSuffix(name, ".down.sql"):
			byVersion[version].down = string(content)
		}
	}

	out := make([]*migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// checkSchema verifies that db holds a clean schema at the latest version
// without changing it.
func checkSchema(ctx context.Context, db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	var current, dirty int
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0), COALESCE(MAX(dirty), 0) FROM schema_migrations`,
	).Scan(&current, &dirty)
	if err != nil {
		return fmt.Errorf("not a snapshot file: %w", err)
	}
	if dirty != 0 {
		return fmt.Errorf("schema version %d is dirty", current)
	}
	if latest := migrations[len(migrations)-1].version; current != latest {
		return fmt.Errorf("schema version %d, want %d", current, latest)
	}
	return nil
}

// migrate applies pending migrations, or rolls all of them back when down
// is set. A migration that fails halfway leaves the version marked dirty.
func migrate(ctx context.Context, db *sql.DB, down bool) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current, dirty int
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0), COALESCE(MAX(dirty), 0) FROM schema_migrations`,
	).Scan(&current, &dirty)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}
	if dirty != 0 {
		return fmt.Errorf("snapshot schema is in dirty state at version %d", current)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	if down {
		for i := len(migrations) - 1; i >= 0; i-- {
			m := migrations[i]
			if m.version > current {
				continue
			}
			if m.down == "" {
				return fmt.Errorf("no down migration for version %d", m.version)
			}
			if err := step(ctx, db, m.version, m.down, `DELETE FROM schema_migrations WHERE version = ?`); err != nil {
				return fmt.Errorf("run down migration %d: %w", m.version, err)
			}
		}
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.up == "" {
			return fmt.Errorf("no up migration for version %d", m.version)
		}
		if err := step(ctx, db, m.version, m.up, `UPDATE schema_migrations SET dirty = 0 WHERE version = ?`); err != nil {
			return fmt.Errorf("run up migration %d: %w", m.version, err)
		}
	}
	return nil
}

// step marks version dirty, runs script, then records completion with done.
func step(ctx context.Context, db *sql.DB, version int, script, done string) error {
	if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations (version, dirty) VALUES (?, 1)`, version); err != nil {
		return fmt.Errorf("mark dirty: %w", err)
	}
	if _, err := db.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, done, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return nil
}
