package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ajharbinger/rei-deal-drop/internal/database"
)

// transactionManager implements TransactionManager
type transactionManager struct {
	db *database.DB
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *database.DB) TransactionManager {
	return &transactionManager{db: db}
}

// WithTransaction executes a function within a database transaction
func (tm *transactionManager) WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	repos := &Repositories{
		Deal: NewDealRepository(tx, tm.db.Dialect),
		User: NewUserRepository(tx, tm.db.Dialect),
		Tx:   tm,
	}

	if err := fn(repos); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// dbExecutor is an interface that both *sql.DB and *sql.Tx implement
type dbExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// NewRepositories creates a new repository collection
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Deal: NewDealRepository(db.DB, db.Dialect),
		User: NewUserRepository(db.DB, db.Dialect),
		Tx:   NewTransactionManager(db),
	}
}
