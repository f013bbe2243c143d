package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ngo-fms/fms/internal/platform/db"
	"github.com/ngo-fms/fms/internal/shared"
)

const uniqueViolation = "23505"

const registrySchema = `
CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	full_name  TEXT NOT NULL,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL CHECK (role IN ('super_admin', 'admin', 'volunteer')),
	status     TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
	created_at TIMESTAMPTZ NOT NULL,
	position   INTEGER NOT NULL
)`

var registryColumns = []string{"email", "full_name", "password", "role", "status", "created_at", "position"}

// PGRepository provides PostgreSQL backed persistence of the registry snapshot.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// EnsureSchema creates the users table when missing.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, registrySchema)
	return err
}

// Load returns all users in registry order.
func (r *PGRepository) Load(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT full_name, email, password, role, status, created_at FROM users ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		var (
			user   User
			role   string
			status string
		)
		if err := rows.Scan(&user.FullName, &user.Email, &user.Password, &role, &status, &user.CreatedAt); err != nil {
			return nil, err
		}
		if err := user.Role.UnmarshalText([]byte(role)); err != nil {
			return nil, err
		}
		if err := user.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Save replaces the table contents with users inside one transaction.
func (r *PGRepository) Save(ctx context.Context, users []User) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM users`); err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}
		rows := make([][]any, len(users))
		for i, u := range users {
			rows[i] = []any{u.Email, u.FullName, u.Password, string(u.Role), string(u.Status), u.CreatedAt.UTC(), i}
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"users"}, registryColumns, pgx.CopyFromRows(rows))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", shared.ErrDuplicate, pgErr.Detail)
		}
		return err
	})
}

var _ RepositoryPort = (*PGRepository)(nil)
