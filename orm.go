// Package sqlrepo builds T-SQL SELECT, UPDATE and INSERT statements through
// chained calls and renders them to text on demand.
//
// Statements are not safe for concurrent mutation. Use one statement per
// logical query; rendering a statement nobody mutates anymore is safe from
// several goroutines.
package sqlrepo

import (
	"context"
	"database/sql"
)

// Executor runs rendered statements. Satisfied by *sql.DB, *sql.Tx and
// *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
