// Package store owns all SQL against the Postgres schema: current-state
// tables, append-only history, and the materialized rollup tables.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/cbattlegear/forkalytics/pkg/logging"
)

//go:embed schema.sql
var schemaSQL string

// Querier is satisfied by both *sql.DB and *sql.Tx so every store method can
// run standalone or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store carries the database handle and the instance scope applied to every
// query. The instance id is explicit configuration, not ambient state.
type Store struct {
	DB         *sql.DB
	InstanceID string
	logger     logging.Logger
}

// New creates a store scoped to instanceID.
func New(db *sql.DB, instanceID string, logger logging.Logger) *Store {
	return &Store{
		DB:         db,
		InstanceID: instanceID,
		logger:     logger,
	}
}

// Migrate applies the embedded schema. All statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.WithField("instance_id", s.InstanceID).Info("Database schema applied")
	return nil
}
