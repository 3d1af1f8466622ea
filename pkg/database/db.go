// Package database holds the Postgres persistence of pause window settings, job
// toggles and run events.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store wraps a DBTX with the queries used by the application
type Store struct {
	db DBTX
}

// New creates a store on db
func New(db DBTX) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection
func (s *Store) DB() DBTX {
	return s.db
}
