// Package store is the Content Store (spec §4.1): a durable, single-writer
// SQLite-backed relational store for Topic/Extract/Item/Event rows. It
// exposes exactly the operations collaborators need, not a general ORM.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS topics (
	id                 TEXT PRIMARY KEY,
	filepath           TEXT NOT NULL UNIQUE,
	duration_seconds   REAL NOT NULL DEFAULT 0,
	source_id          TEXT NOT NULL UNIQUE,
	title              TEXT NOT NULL DEFAULT '',
	playback_rate      REAL NOT NULL DEFAULT 1.0,
	current_timestamp  REAL NOT NULL DEFAULT 0,
	downloaded         INTEGER NOT NULL DEFAULT 0,
	archived           INTEGER NOT NULL DEFAULT 0,
	deleted            INTEGER NOT NULL DEFAULT 0,
	sm_element_id      TEXT NOT NULL DEFAULT '',
	sm_priority        INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS extracts (
	id          TEXT PRIMARY KEY,
	topic_id    TEXT NOT NULL REFERENCES topics(id),
	filepath    TEXT NOT NULL UNIQUE,
	startstamp  REAL NOT NULL,
	endstamp    REAL,
	archived    INTEGER NOT NULL DEFAULT 0,
	deleted     INTEGER NOT NULL DEFAULT 0,
	exported    INTEGER NOT NULL DEFAULT 0,
	to_export   INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_extracts_topic ON extracts(topic_id);

CREATE TABLE IF NOT EXISTS items (
	id                 TEXT PRIMARY KEY,
	extract_id         TEXT NOT NULL REFERENCES extracts(id),
	question_filepath  TEXT UNIQUE,
	answer_filepath    TEXT UNIQUE,
	cloze_startstamp   REAL NOT NULL,
	cloze_endstamp     REAL,
	archived           INTEGER NOT NULL DEFAULT 0,
	deleted            INTEGER NOT NULL DEFAULT 0,
	exported           INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_items_extract ON items(extract_id);

CREATE TABLE IF NOT EXISTS topic_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id  TEXT NOT NULL REFERENCES topics(id),
	kind        TEXT NOT NULL,
	position    REAL NOT NULL,
	duration_sec REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS extract_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id  TEXT NOT NULL REFERENCES extracts(id),
	kind        TEXT NOT NULL,
	position    REAL NOT NULL,
	duration_sec REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id  TEXT NOT NULL REFERENCES items(id),
	kind        TEXT NOT NULL,
	position    REAL NOT NULL,
	duration_sec REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- archive_ledger backs the archive_file config option (§6): source ids that
-- an external ingestion collaborator has already deposited, so it can skip
-- re-downloading without the core reaching out to that collaborator.
CREATE TABLE IF NOT EXISTS archive_ledger (
	source_id TEXT PRIMARY KEY
);
`

// Store is the durable Content Store. A single *sql.DB is shared by all
// readers and writers; SQLite's own locking gives the coarse-grained
// concurrency the spec calls for (§5).
type Store struct {
	db *sql.DB
}

// Open creates or migrates the SQLite database at path and returns a Store.
// busy_timeout is set so concurrent background readers don't immediately
// fail against the Progress Tracker's writes.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrStorage, path, err)
	}
	db.SetMaxOpenConns(1) // single-writer; avoids SQLITE_BUSY from the driver itself

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate schema: %v", ErrStorage, err)
	}

	slog.Info("content store opened", "path", path)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
