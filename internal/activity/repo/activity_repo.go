package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage"
	userentity "github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
)

// ActivityRepo provides data access for the activities table using sqlx.
type ActivityRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewActivityRepo(db *sqlx.DB, timeout time.Duration) *ActivityRepo {
	return &ActivityRepo{db: db, timeout: timeout}
}

func (r *ActivityRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// EnsureTable creates the activities table if not exists (idempotent). The
// users table must exist first.
func (r *ActivityRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS activities (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  action VARCHAR(255) NOT NULL,
  description TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id);
CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_activities_action ON activities(action);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const activityColumns = `a.id, a.user_id, a.action, a.description, a.created_at, a.updated_at`

// Create inserts a record and sets a.ID. An unknown actor surfaces as
// storage.ErrForeignKey.
func (r *ActivityRepo) Create(ctx context.Context, a *entity.Activity) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `INSERT INTO activities (user_id, action, description, created_at, updated_at)
		VALUES (:user_id, :action, :description, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
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
	return storage.FromPostgres(rows.Scan(&a.ID))
}

func (r *ActivityRepo) GetByID(ctx context.Context, id int64) (*entity.Activity, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var a entity.Activity
	if err := r.db.GetContext(ctx, &a, `SELECT `+activityColumns+` FROM activities a WHERE a.id=$1`, id); err != nil {
		return nil, storage.FromPostgres(err)
	}
	return &a, nil
}

// Update applies p in a single statement so concurrent writers never see a
// half-applied patch.
func (r *ActivityRepo) Update(ctx context.Context, id int64, p entity.Patch, now time.Time) (*entity.Activity, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `UPDATE activities a SET
		action = COALESCE($2::varchar, a.action),
		description = CASE WHEN $3::boolean THEN $4::text ELSE a.description END,
		updated_at = $5
		WHERE a.id = $1
		RETURNING ` + activityColumns
	var a entity.Activity
	err := r.db.GetContext(ctx, &a, q, id, p.Action, p.Description.Set, p.Description.Ptr(), now)
	if err != nil {
		return nil, storage.FromPostgres(err)
	}
	return &a, nil
}

// Delete hard-deletes a record and reports rows affected.
func (r *ActivityRepo) Delete(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id=$1`, id)
	if err != nil {
		return 0, storage.FromPostgres(err)
	}
	return res.RowsAffected()
}

type listRow struct {
	entity.Activity
	ActorName  sql.NullString `db:"actor_name"`
	ActorEmail sql.NullString `db:"actor_email"`
}

// List returns matching records newest first with their actor attached.
func (r *ActivityRepo) List(ctx context.Context, f entity.Filter, limit, offset int) ([]entity.Activity, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	cond, args := where(f)
	args = append(args, limit, offset)
	q := `SELECT ` + activityColumns + `, u.name AS actor_name, u.email AS actor_email
		FROM activities a LEFT JOIN users u ON u.id = a.user_id` + cond + `
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	var rows []listRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, storage.FromPostgres(err)
	}
	out := make([]entity.Activity, 0, len(rows))
	for _, row := range rows {
		a := row.Activity
		if row.ActorName.Valid {
			a.Actor = &userentity.Summary{ID: a.ActorID, Name: row.ActorName.String, Email: row.ActorEmail.String}
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *ActivityRepo) Count(ctx context.Context, f entity.Filter) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	cond, args := where(f)
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM activities a`+cond, args...)
	return n, storage.FromPostgres(err)
}

func (r *ActivityRepo) Total(ctx context.Context) (int, error) {
	return r.Count(ctx, entity.Filter{})
}

// CountByActor groups records by actor, ordered by actor id.
func (r *ActivityRepo) CountByActor(ctx context.Context) ([]entity.ActorCount, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	out := []entity.ActorCount{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, COUNT(*) AS action_count FROM activities GROUP BY user_id ORDER BY user_id`)
	return out, storage.FromPostgres(err)
}

// CountByAction groups records by action, ordered by action.
func (r *ActivityRepo) CountByAction(ctx context.Context) ([]entity.ActionCount, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	out := []entity.ActionCount{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT action, COUNT(*) AS count, MIN(id) AS first_id FROM activities GROUP BY action ORDER BY action`)
	return out, storage.FromPostgres(err)
}

// where renders the filter predicates as a WHERE clause with positional args.
func where(f entity.Filter) (string, []any) {
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	var conds []string
	for _, p := range f.Predicates() {
		conds = append(conds, p.SQL(bind))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
