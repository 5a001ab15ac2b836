// Package store is the durable persistence layer: tasks, sessions,
// settings, and library rows backed by an embedded SQLite database. All
// schema DDL is idempotent so an older on-disk database upgrades in place
// on every start.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// maxOpenConns bounds the connection pool, mirroring the reference
// deployment's fixed small pool size for an embedded single-file database.
const maxOpenConns = 5

// Store wraps a pooled connection to the broker's SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or upgrades the database at path and returns a ready Store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// addColumnIfAbsent runs an ALTER TABLE ADD COLUMN, ignoring the
// "duplicate column" error SQLite raises when the column already exists.
// This is how idempotent column additions are expressed against a driver
// with no native "ADD COLUMN IF NOT EXISTS" support.
func (s *Store) addColumnIfAbsent(table, column, ddl string) {
	_, _ = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl))
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			original_url TEXT NOT NULL,
			resolved_url TEXT,
			filename TEXT NOT NULL,
			destination TEXT NOT NULL,
			state TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			downloaded INTEGER NOT NULL DEFAULT 0,
			progress REAL NOT NULL DEFAULT 0,
			speed REAL NOT NULL DEFAULT 0,
			eta REAL NOT NULL DEFAULT 0,
			host TEXT NOT NULL,
			category TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			retry_count INTEGER NOT NULL DEFAULT 0,
			wait_until TEXT,
			error_message TEXT,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			url_resolved_at TEXT,
			url_expires_at TEXT,
			needs_url_refresh INTEGER NOT NULL DEFAULT 0,
			batch_id TEXT,
			batch_name TEXT,
			host_file_code TEXT,
			external_id INTEGER,
			media_kind TEXT,
			media_title TEXT,
			media_year INTEGER,
			media_season INTEGER,
			media_episode INTEGER,
			arr_series_id INTEGER,
			arr_movie_id INTEGER,
			quality TEXT,
			resolution TEXT,
			media_collection TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_batch_id ON tasks(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_host ON tasks(host)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_host_file_code ON tasks(host_file_code)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_external_id ON tasks(external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_state_created ON tasks(state, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_batch_state ON tasks(batch_id, state)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_host_state ON tasks(host, state)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			host TEXT PRIMARY KEY,
			session_id TEXT,
			token TEXT,
			created_at TEXT NOT NULL,
			last_validated TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS media_items (
			external_id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			year INTEGER,
			arr_kind TEXT,
			arr_id INTEGER,
			arr_path TEXT,
			monitored INTEGER NOT NULL DEFAULT 0,
			has_file INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_items_arr_id ON media_items(arr_id)`,

		`CREATE TABLE IF NOT EXISTS media_episodes (
			external_id INTEGER NOT NULL REFERENCES media_items(external_id),
			season INTEGER NOT NULL,
			episode INTEGER NOT NULL,
			title TEXT,
			arr_episode_id INTEGER,
			has_file INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(external_id, season, episode)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_episodes_lookup ON media_episodes(external_id, season, episode)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}

	// Column additions for installs upgrading from an earlier schema
	// version use "add if absent" semantics so they can be re-run safely.
	s.addColumnIfAbsent("tasks", "needs_url_refresh", "INTEGER NOT NULL DEFAULT 0")
	s.addColumnIfAbsent("tasks", "quality", "TEXT")
	s.addColumnIfAbsent("tasks", "resolution", "TEXT")

	return nil
}
