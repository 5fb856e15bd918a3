package sqliteDB

import (
	"context"
	"database/sql"
)

const createUser = `INSERT INTO users (
    username, first_name, last_name, year_of_birth, language, location, password_hash, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING username, first_name, last_name, year_of_birth, language, location, password_hash, created_at`

type CreateUserParams struct {
	Username     string
	FirstName    string
	LastName     sql.NullString
	YearOfBirth  sql.NullInt64
	Language     string
	Location     sql.NullString
	PasswordHash string
	CreatedAt    int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Username,
		arg.FirstName,
		arg.LastName,
		arg.YearOfBirth,
		arg.Language,
		arg.Location,
		arg.PasswordHash,
		arg.CreatedAt,
	)
	var i User
	err := row.Scan(
		&i.Username,
		&i.FirstName,
		&i.LastName,
		&i.YearOfBirth,
		&i.Language,
		&i.Location,
		&i.PasswordHash,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByUsername = `SELECT username, first_name, last_name, year_of_birth, language, location, password_hash, created_at
FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(
		&i.Username,
		&i.FirstName,
		&i.LastName,
		&i.YearOfBirth,
		&i.Language,
		&i.Location,
		&i.PasswordHash,
		&i.CreatedAt,
	)
	return i, err
}

const listUsers = `SELECT username, first_name, last_name, year_of_birth, language, location, password_hash, created_at
FROM users ORDER BY username`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(
			&i.Username,
			&i.FirstName,
			&i.LastName,
			&i.YearOfBirth,
			&i.Language,
			&i.Location,
			&i.PasswordHash,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteUser = `DELETE FROM users WHERE username = ?`

func (q *Queries) DeleteUser(ctx context.Context, username string) error {
	_, err := q.db.ExecContext(ctx, deleteUser, username)
	return err
}
