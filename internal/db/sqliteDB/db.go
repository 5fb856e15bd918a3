package sqliteDB

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

// Session is a row of the sessions table.
type Session struct {
	Token     string
	Role      string
	Username  string
	CreatedAt int64 // unix microseconds
}

// User is a row of the users table.
type User struct {
	Username     string
	FirstName    string
	LastName     sql.NullString
	YearOfBirth  sql.NullInt64
	Language     string
	Location     sql.NullString
	PasswordHash string
	CreatedAt    int64
}
