// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and helpers to run functions inside a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor hands out a non-transactional handle for plain reads and runs
// units of work in a transaction. Services depend on it instead of *sql.DB.
type Transactor interface {
	DB() DBTX
	WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// SQLTransactor implements Transactor over *sql.DB.
type SQLTransactor struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewSQLTransactor wraps db. opts may be nil for driver defaults.
func NewSQLTransactor(db *sql.DB, opts *sql.TxOptions) *SQLTransactor {
	return &SQLTransactor{db: db, opts: opts}
}

func (t *SQLTransactor) DB() DBTX {
	return t.db
}

func (t *SQLTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, t.db, t.opts, fn)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
