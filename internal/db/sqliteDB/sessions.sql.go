package sqliteDB

import (
	"context"
)

const insertSession = `INSERT INTO sessions (token, role, username, created_at)
VALUES (?, ?, ?, ?)`

type InsertSessionParams struct {
	Token     string
	Role      string
	Username  string
	CreatedAt int64
}

func (q *Queries) InsertSession(ctx context.Context, arg InsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, insertSession,
		arg.Token,
		arg.Role,
		arg.Username,
		arg.CreatedAt,
	)
	return err
}

const getSession = `SELECT token, role, username, created_at FROM sessions WHERE token = ?`

func (q *Queries) GetSession(ctx context.Context, token string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, token)
	var i Session
	err := row.Scan(
		&i.Token,
		&i.Role,
		&i.Username,
		&i.CreatedAt,
	)
	return i, err
}

const deleteSession = `DELETE FROM sessions WHERE token = ?`

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, token)
	return err
}

const listSessions = `SELECT token, role, username, created_at FROM sessions ORDER BY created_at`

func (q *Queries) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, listSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Session
	for rows.Next() {
		var i Session
		if err := rows.Scan(
			&i.Token,
			&i.Role,
			&i.Username,
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

const deleteSessionsCreatedBefore = `DELETE FROM sessions WHERE created_at < ?`

func (q *Queries) DeleteSessionsCreatedBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSessionsCreatedBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
