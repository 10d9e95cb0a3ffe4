package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (User, error) {
	const query = `
SELECT id, email, name, picture, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `
SELECT id, email, name, picture, created_at, updated_at
FROM users
WHERE email = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, normalizeEmail(email)))
}

// Upsert inserts the user or refreshes the mutable profile fields when the
// email already exists. The account id never changes once assigned.
func (r *PGRepo) Upsert(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, email, name, picture, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (email) DO UPDATE
SET name = EXCLUDED.name, picture = EXCLUDED.picture, updated_at = NOW()
RETURNING id, email, name, picture, created_at, updated_at`
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID,
		normalizeEmail(user.Email),
		user.Name,
		user.Picture,
	))
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var name sql.NullString
	var picture sql.NullString
	err := row.Scan(&user.ID, &user.Email, &name, &picture, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Name = name.String
	user.Picture = picture.String
	return user, nil
}

var _ Repo = (*PGRepo)(nil)
