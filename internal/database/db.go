// Package database holds the Postgres queries backing the upload session
// journal. The layout follows sqlc output: a DBTX abstraction, a Queries
// value created with New, and one method per statement.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// New wraps db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries runs the upload session statements.
type Queries struct {
	db DBTX
}
