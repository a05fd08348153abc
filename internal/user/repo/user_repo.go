package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewUserRepo bounds every call by timeout (no bound when zero).
func NewUserRepo(db *sqlx.DB, timeout time.Duration) *UserRepo {
	return &UserRepo{db: db, timeout: timeout}
}

func (r *UserRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  email VARCHAR(255) NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

// Create inserts a new user row and sets u.ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `INSERT INTO users (name, email, password_hash, created_at, updated_at)
		VALUES (:name, :email, :password_hash, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return storage.FromPostgres(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return storage.FromPostgres(err)
		}
		return errors.New("no id returned")
	}
	return storage.FromPostgres(rows.Scan(&u.ID))
}

// GetByEmail returns a user matched by its stored (lowercased) email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email=$1`, email); err != nil {
		return nil, storage.FromPostgres(err)
	}
	return &u, nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return nil, storage.FromPostgres(err)
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	out := []entity.User{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	return out, storage.FromPostgres(err)
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, storage.FromPostgres(err)
}

// ListCreatedSince returns users created at or after since, newest first.
func (r *UserRepo) ListCreatedSince(ctx context.Context, since time.Time) ([]entity.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	out := []entity.User{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+userColumns+` FROM users WHERE created_at >= $1 ORDER BY created_at DESC, id DESC`, since)
	return out, storage.FromPostgres(err)
}

// Delete removes a user; activities go with it via ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return 0, storage.FromPostgres(err)
	}
	return res.RowsAffected()
}
