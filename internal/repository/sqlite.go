package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite manifest database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Workers record files concurrently; SQLite takes one writer at a time.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sort_runs (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		discovered INTEGER NOT NULL DEFAULT 0,
		qualifying INTEGER NOT NULL DEFAULT 0,
		copied INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		panicked INTEGER NOT NULL DEFAULT 0,
		rotated INTEGER NOT NULL DEFAULT 0,
		tagged INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS manifest_entries (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES sort_runs(id) ON DELETE CASCADE,
		source_path TEXT NOT NULL,
		dest_path TEXT NOT NULL DEFAULT '',
		relative_dir TEXT NOT NULL DEFAULT '',
		capture_date DATETIME,
		date_source TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		file_hash TEXT NOT NULL DEFAULT '',
		rotated INTEGER NOT NULL DEFAULT 0,
		tagged INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		processed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_manifest_entries_run_id ON manifest_entries(run_id);
	CREATE INDEX IF NOT EXISTS idx_manifest_entries_status ON manifest_entries(run_id, status);
	CREATE INDEX IF NOT EXISTS idx_manifest_entries_hash ON manifest_entries(file_hash);
	`

	_, err := db.Exec(schema)
	return err
}
