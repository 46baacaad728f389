package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens a SQLite database and creates its tables
func Open(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return database, nil
}

// createTables creates all necessary tables
func createTables(database *sql.DB) error {
	createBuildsTable := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		output_dir TEXT NOT NULL DEFAULT '',
		source_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		slide_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);`

	if _, err := database.Exec(createBuildsTable); err != nil {
		return fmt.Errorf("failed to create builds table: %w", err)
	}

	// Builds are listed per source, newest first
	createSourceIndex := `CREATE INDEX IF NOT EXISTS idx_builds_source ON builds(source, started_at);`
	if _, err := database.Exec(createSourceIndex); err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}

	createCacheTable := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		renderer TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (renderer, key_hash)
	);`

	if _, err := database.Exec(createCacheTable); err != nil {
		return fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	createAgeIndex := `CREATE INDEX IF NOT EXISTS idx_cache_created ON cache_entries(created_at);`
	if _, err := database.Exec(createAgeIndex); err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}
