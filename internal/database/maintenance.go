package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MaintenanceOperation is one recorded run of a DB-mutating CLI command
// (queue clearing, pruning, avatar image cleanup). Kept as an audit
// trail; `courier history` lists them newest-first.
type MaintenanceOperation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Status     string
}

// CreateMaintenanceOperation records the start of an operation and
// returns its auto-increment ID.
func (d *DB) CreateMaintenanceOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (int64, error) {
	var id int64
	err := d.Write(ctx, func(tx *WriteTx) error {
		res, err := tx.Exec(
			`INSERT INTO maintenance_operations (started_at, operation, parameters, status)
			 VALUES (?, ?, ?, 'started')`,
			startedAt, operation, parameters,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("creating maintenance operation: %w", err)
	}
	return id, nil
}

// FinishMaintenanceOperation marks an operation as finished with the
// given status ("success" or "error").
func (d *DB) FinishMaintenanceOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	err := d.Write(ctx, func(tx *WriteTx) error {
		_, err := tx.Exec(
			`UPDATE maintenance_operations SET finished_at = ?, status = ? WHERE id = ?`,
			finishedAt, status, id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("finishing maintenance operation: %w", err)
	}
	return nil
}

// ListMaintenanceOperations returns the most recent operations, newest first.
func (d *DB) ListMaintenanceOperations(ctx context.Context, limit int) ([]*MaintenanceOperation, error) {
	var ops []*MaintenanceOperation
	err := d.Read(ctx, func(tx *ReadTx) error {
		rows, err := tx.Query(
			`SELECT id, started_at, finished_at, operation, parameters, status
			 FROM maintenance_operations ORDER BY id DESC LIMIT ?`,
			limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var op MaintenanceOperation
			if err := rows.Scan(&op.ID, &op.StartedAt, &op.FinishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
				return err
			}
			ops = append(ops, &op)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing maintenance operations: %w", err)
	}
	return ops, nil
}
