package database

import (
	"context"
	"database/sql"
)

// ReadTx is a transaction handle restricted to reads. Stores accept a
// *ReadTx for lookups and scans; the caller owns the transaction
// lifetime via DB.Read / DB.Write.
type ReadTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Context returns the context the transaction was started with.
func (t *ReadTx) Context() context.Context { return t.ctx }

// QueryRow executes a query expected to return at most one row.
func (t *ReadTx) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

// Query executes a query returning multiple rows.
func (t *ReadTx) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, args...)
}

// WriteTx extends ReadTx with mutation capability. Mutations commit
// atomically with the enclosing DB.Write call.
type WriteTx struct {
	ReadTx
}

// Exec executes a statement that mutates the database.
func (t *WriteTx) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, args...)
}
