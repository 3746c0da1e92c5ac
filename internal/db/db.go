// Package db provides SQLite connection management and persistence for the offline layer.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "tripplanner.db"

// DB wraps sqlx.DB with agent-specific configuration.
type DB struct {
	*sqlx.DB
}

// Open opens the SQLite database in dataDir.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
// - A single connection, since SQLite allows one writer
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return OpenPath(filepath.Join(dataDir, FileName))
}

// OpenPath opens a SQLite database at an explicit path (":memory:" included).
func OpenPath(dbPath string) (*DB, error) {
	// modernc.org/sqlite is pure Go, no CGO
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// OpenMigrated opens the database in dataDir and applies all embedded migrations.
func OpenMigrated(dataDir string) (*DB, error) {
	database, err := Open(dataDir)
	if err != nil {
		return nil, err
	}

	m, err := NewEmbeddedMigrator(database.DB.DB)
	if err != nil {
		database.Close()
		return nil, err
	}
	if err := m.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
