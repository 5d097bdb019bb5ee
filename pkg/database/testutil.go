package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock
// pools. Repositories depend on it instead of a concrete pool.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewMockPool creates a new pgxmock pool for testing. The returned pool
// satisfies the DBTX interface and can be passed to any repository constructor.
// Call ExpectationsWereMet() at the end of each test to verify all expectations were fulfilled.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
