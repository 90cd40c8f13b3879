package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/democrm/internal/domain/user"
)

// User rows live in the tenant schema bound to ctx.

const userColumns = `id, email, name, mobile, password_hash, role, deletion_date, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Mobile, &u.PasswordHash, &u.Role, &u.DeletionDate, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	q, err := boundQuerier(ctx)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err = q.Exec(ctx, `
		INSERT INTO users (id, email, name, mobile, password_hash, role, deletion_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, u.Mobile, u.PasswordHash, u.Role, u.DeletionDate, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "create user %s", u.Email)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	q, err := boundQuerier(ctx)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapPostgresError(err, "get user %s", id)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	q, err := boundQuerier(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, mapPostgresError(err, "list users")
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return orEmpty(users), rows.Err()
}

func (s *Store) SetUserDeletionDate(ctx context.Context, id string, date *time.Time) error {
	q, err := boundQuerier(ctx)
	if err != nil {
		return fmt.Errorf("set deletion date: %w", err)
	}
	tag, err := q.Exec(ctx,
		`UPDATE users SET deletion_date = $2, updated_at = now() WHERE id = $1`, id, date)
	return execExpectOne(tag, err, "set deletion date %s", id)
}

// DeleteUsersDue removes members whose deletion date is on or before day.
func (s *Store) DeleteUsersDue(ctx context.Context, day time.Time) (int64, error) {
	q, err := boundQuerier(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete due users: %w", err)
	}
	tag, err := q.Exec(ctx,
		`DELETE FROM users WHERE deletion_date IS NOT NULL AND deletion_date <= $1::date`,
		day.UTC().Format(time.DateOnly))
	if err != nil {
		return 0, mapPostgresError(err, "delete due users")
	}
	return tag.RowsAffected(), nil
}
