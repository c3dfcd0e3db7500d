// Package storage provides SQLite persistence for netlens.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

var (
	instance *DB
	once     sync.Once
)

// GetDB returns the singleton database instance.
func GetDB() *DB {
	return instance
}

// Initialize creates and initializes the database.
func Initialize(dataDir string) (*DB, error) {
	var initErr error
	once.Do(func() {
		dbPath := filepath.Join(dataDir, "netlens.db")
		db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}

		// SQLite only supports one writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		instance = &DB{DB: db}

		if err := instance.createTables(); err != nil {
			initErr = fmt.Errorf("failed to create tables: %w", err)
			return
		}
	})

	return instance, initErr
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id TEXT NOT NULL UNIQUE,
			netblocks TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'SUBMITTED',
			credits_left INTEGER DEFAULT 0,
			results INTEGER DEFAULT 0,
			created DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_scan_id ON scans(scan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
