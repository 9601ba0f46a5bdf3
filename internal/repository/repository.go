package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
)

type Repository struct {
	DB            *sql.DB
	GoquDBWrapper *goqu.Database
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		DB:            db,
		GoquDBWrapper: goqu.New("postgres", db),
	}
}

func WithTransaction(db *goqu.Database, fn func(tx *goqu.TxDatabase) error) (err error) {
	rawTx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	tx := goqu.NewTx("postgres", rawTx)
	defer func() {
		if p := recover(); p != nil {
			rawTx.Rollback()
			panic(p)
		} else if err != nil {
			rawTx.Rollback()
		} else {
			err = rawTx.Commit()
		}
	}()

	err = fn(tx)
	return
}

// WithRetry runs fn in a transaction, retrying serialization failures and
// deadlocks with exponential backoff. Any other error is returned as-is.
func WithRetry(db *goqu.Database, attempts int, fn func(tx *goqu.TxDatabase) error) error {
	backoff := 25 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		err = WithTransaction(db, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	return fmt.Errorf("transaction retries exhausted: %w", err)
}

// IsRetryable reports whether the error is a transient postgres conflict
// (serialization failure or deadlock).
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports whether the error is a unique-constraint conflict,
// optionally narrowed to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
