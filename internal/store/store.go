// Package store is the persistence gateway: the narrow, typed surface the
// engine uses over SQLite. Agents only know artifact identifiers; the
// surrogate keys and the identifier/surrogate mapping live here.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"stpasec/internal/logging"
)

// Store wraps one SQLite database holding analyses and their artifacts.
// The coordinator uses one Store per sequential phase and hands each
// parallel agent its own connection via Conn.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	// legacyArtifacts is true when the artifacts table predates the
	// identifier column; see compat.go.
	legacyArtifacts bool
}

// Open initializes the database at path, creating the schema when absent.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; WAL readers still proceed concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.L(logging.CategoryStore).Debugw("pragma failed", "pragma", pragma, "error", err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.detectLegacySchema(); err != nil {
		db.Close()
		return nil, err
	}
	logging.L(logging.CategoryStore).Debugw("store opened", "path", path)
	return s, nil
}

// OpenMemory opens an in-memory store. Used by tests and the demo loader.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.detectLegacySchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		step INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		quality_score REAL,
		parent_id TEXT,
		user_id TEXT,
		execution_mode TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		identifier TEXT,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_analysis_kind
		ON artifacts(analysis_id, kind);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_identifier
		ON artifacts(analysis_id, kind, identifier)
		WHERE identifier IS NOT NULL AND identifier != '';

	CREATE TABLE IF NOT EXISTS mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		a_id TEXT NOT NULL,
		b_id TEXT NOT NULL,
		props TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_mappings_analysis_kind
		ON mappings(analysis_id, kind);

	CREATE TABLE IF NOT EXISTS agent_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_agent_results_analysis
		ON agent_results(analysis_id, agent_type);

	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		activity TEXT NOT NULL,
		detail TEXT,
		ts DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS element_dependencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		from_kind TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_kind TEXT NOT NULL,
		to_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deps_target
		ON element_dependencies(analysis_id, to_kind, to_id);

	CREATE TABLE IF NOT EXISTS versions (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		version_type TEXT NOT NULL DEFAULT 'commit',
		commit_message TEXT,
		created_by TEXT,
		state_snapshot TEXT NOT NULL,
		user_modifications TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(analysis_id, version_number)
	);

	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'working',
		draft_data TEXT NOT NULL DEFAULT '{}',
		version_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_working
		ON drafts(analysis_id, user_id)
		WHERE state = 'working';
	`
	_, err := s.db.Exec(schema)
	return err
}
