package db

import (
	"database/sql"
	"fmt"
	"os"
)

const dirsTableDDL = `
CREATE TABLE IF NOT EXISTS dirs (
    id INTEGER PRIMARY KEY,
    path TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    parent_id INTEGER,
    depth INTEGER NOT NULL,
    position INTEGER NOT NULL
);
`

// entries holds every non-directory node. position is the index among all
// siblings, so the crawl order can be rebuilt from dirs and entries.
const entriesTableDDL = `
CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY,
    parent_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    kind INTEGER NOT NULL,
    size INTEGER NOT NULL,
    position INTEGER NOT NULL
);
`

const rollupsTableDDL = `
CREATE TABLE IF NOT EXISTS rollups (
    dir_id INTEGER PRIMARY KEY,
    total_size INTEGER NOT NULL,
    total_files INTEGER NOT NULL,
    total_dirs INTEGER NOT NULL
);
`

const scanMetaTableDDL = `
CREATE TABLE IF NOT EXISTS scan_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    root_path TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER,
    total_size INTEGER DEFAULT 0,
    file_count INTEGER DEFAULT 0,
    dir_count INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0,
    max_depth INTEGER DEFAULT -1,
    workers INTEGER DEFAULT 1
);
`

const scanErrorsTableDDL = `
CREATE TABLE IF NOT EXISTS scan_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    op TEXT NOT NULL,
    message TEXT NOT NULL
);
`

const dirsPathIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_dirs_path ON dirs(path);`
const dirsParentIndexDDL = `CREATE INDEX IF NOT EXISTS idx_dirs_parent ON dirs(parent_id);`
const entriesParentIndexDDL = `CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent_id);`
const rollupsSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_rollups_size ON rollups(total_size DESC);`
const entriesParentSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_entries_parent_size ON entries(parent_id, size DESC);`

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	ddls := []string{
		dirsTableDDL,
		entriesTableDDL,
		rollupsTableDDL,
		scanMetaTableDDL,
		scanErrorsTableDDL,
	}

	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}

// ApplyWritePragmas configures SQLite for bulk ingestion.
func ApplyWritePragmas(db *sql.DB) error {
	return execPragmas(db,
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
	)
}

// ApplyReadPragmas configures SQLite for read-only browsing.
func ApplyReadPragmas(db *sql.DB) error {
	return execPragmas(db,
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456", // 256MB mmap
		"PRAGMA query_only = ON",
	)
}

// ApplyIndexPragmas configures SQLite for index builds.
// When diskTemp is true, temp files are stored on disk to reduce RAM usage.
func ApplyIndexPragmas(db *sql.DB, diskTemp bool, tmpDir string) error {
	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return fmt.Errorf("failed to create sqlite temp dir: %w", err)
		}
		if err := os.Setenv("SQLITE_TMPDIR", tmpDir); err != nil {
			return fmt.Errorf("failed to set SQLITE_TMPDIR: %w", err)
		}
	}

	pragma := "PRAGMA temp_store = MEMORY"
	if diskTemp {
		pragma = "PRAGMA temp_store = FILE"
	}
	return execPragmas(db, pragma)
}

// BuildIndexes creates indexes after the initial data load.
func BuildIndexes(db *sql.DB) error {
	indexes := []string{
		dirsPathIndexDDL,
		dirsParentIndexDDL,
		entriesParentIndexDDL,
		rollupsSizeIndexDDL,
		entriesParentSizeIndexDDL,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Finalize prepares the database for read-only access.
func Finalize(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}

	// DELETE journal keeps the snapshot a single portable file.
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	return nil
}

func execPragmas(db *sql.DB, pragmas ...string) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}
