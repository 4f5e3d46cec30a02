// Package repository defines data access contracts using SQL queries only.
// No business logic here — strictly persistence operations. Every method takes
// a Querier so callers decide whether it runs on the pool or inside an open
// transaction.
package repository

import (
	"context"
	"database/sql"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories never begin or commit transactions themselves.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
