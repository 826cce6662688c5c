package database

import (
	"context"
	"database/sql"
	"fmt"

	"courier/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB wraps the SQLite connection and hands out read and write
// transactions. All store operations run inside a transaction obtained
// from Read or Write; the transaction commits atomically when the
// callback returns nil and rolls back otherwise.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens a SQLite database at path. path can be a file path or
// ":memory:" for an in-memory database.
func Open(path string) (*DB, error) {
	sqlDB, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &DB{db: sqlDB, path: path}, nil
}

// FromDB wraps an existing database connection. The caller is
// responsible for ensuring the connection is properly configured.
func FromDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the stores rely on. Exported for tools and tests that need a
// properly configured raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes write transactions and keeps
	// ":memory:" databases from silently splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Read runs fn inside a transaction used only for reads. The
// transaction still commits so the snapshot is released cleanly.
func (d *DB) Read(ctx context.Context, fn func(tx *ReadTx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ReadTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing read transaction: %w", err)
	}
	return nil
}

// Write runs fn inside a write transaction. All mutations made through
// the transaction commit atomically; any error from fn rolls them back.
func (d *DB) Write(ctx context.Context, fn func(tx *WriteTx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting write transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&WriteTx{ReadTx{ctx: ctx, tx: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing write transaction: %w", err)
	}
	return nil
}

// MigrateUp brings the schema to the latest version.
func (d *DB) MigrateUp() error {
	return migrations.MigrateUp(d.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (d *DB) CheckMigrations() error {
	return migrations.CheckStatus(d.db)
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
