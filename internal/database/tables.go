package database

import (
	"context"

	"github.com/google/uuid"
)

func (q *Queries) GetTableByNumber(ctx context.Context, tableNumber int32) (Table, error) {
	var t Table
	err := q.db.QueryRow(ctx,
		`SELECT id, table_number FROM tables WHERE table_number = $1`, tableNumber,
	).Scan(&t.ID, &t.TableNumber)
	return t, err
}

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, `SELECT id, table_number FROM tables ORDER BY table_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.TableNumber); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (q *Queries) CreateTable(ctx context.Context, tableNumber int32) (Table, error) {
	var t Table
	err := q.db.QueryRow(ctx,
		`INSERT INTO tables (table_number) VALUES ($1) RETURNING id, table_number`,
		tableNumber,
	).Scan(&t.ID, &t.TableNumber)
	return t, err
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return q.scanUser(q.db.QueryRow(ctx,
		`SELECT id, name, username, hashed_password, role, created_at
		 FROM users WHERE username = $1`, username))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return q.scanUser(q.db.QueryRow(ctx,
		`SELECT id, name, username, hashed_password, role, created_at
		 FROM users WHERE id = $1`, id))
}

type CreateUserParams struct {
	Name           string
	Username       string
	HashedPassword string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return q.scanUser(q.db.QueryRow(ctx, `
		INSERT INTO users (name, username, hashed_password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, username, hashed_password, role, created_at`,
		arg.Name, arg.Username, arg.HashedPassword, arg.Role))
}

func (q *Queries) scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.HashedPassword, &u.Role, &u.CreatedAt)
	return u, err
}
