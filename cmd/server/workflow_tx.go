package main

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "examflow/pkg/platform/tx"
)

// postgresTxRunner opens a database transaction and carries it in the
// context. Stores that find a transaction there join it, which is how a
// document update and its version and feedback rows commit as one unit.
type postgresTxRunner struct {
	db *sql.DB
}

func (r *postgresTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
