// Package memory is an in-process store for users and their activities. It
// keeps the same guarantees as the Postgres schema: unique emails, activities
// must reference an existing user, and deleting a user deletes its activities.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	activity "github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage"
	user "github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
)

type Store struct {
	mu         sync.RWMutex
	users      map[int64]user.User
	emails     map[string]int64
	activities map[int64]activity.Activity
	lastUser   int64
	lastAct    int64
}

func New() *Store {
	return &Store{
		users:      make(map[int64]user.User),
		emails:     make(map[string]int64),
		activities: make(map[int64]activity.Activity),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *Users { return &Users{s: s} }

// Activities returns the activity repository view of the store.
func (s *Store) Activities() *Activities { return &Activities{s: s} }

func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

type Users struct{ s *Store }

func (r *Users) Create(ctx context.Context, u *user.User) error {
	if err := live(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.emails[u.Email]; ok {
		return fmt.Errorf("%w: users_email_key", storage.ErrConflict)
	}
	r.s.lastUser++
	u.ID = r.s.lastUser
	r.s.users[u.ID] = *u
	r.s.emails[u.Email] = u.ID
	return nil
}

func (r *Users) GetByID(ctx context.Context, id int64) (*user.User, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

// List returns users ordered by id.
func (r *Users) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	all := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, limit, offset), nil
}

func (r *Users) Count(ctx context.Context) (int, error) {
	if err := live(ctx); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

// ListCreatedSince returns users created at or after since, newest first.
func (r *Users) ListCreatedSince(ctx context.Context, since time.Time) ([]user.User, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	var out []user.User
	for _, u := range r.s.users {
		if !u.CreatedAt.Before(since) {
			out = append(out, u)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

// Delete removes the user and cascades to its activities.
func (r *Users) Delete(ctx context.Context, id int64) (int64, error) {
	if err := live(ctx); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return 0, nil
	}
	delete(r.s.users, id)
	delete(r.s.emails, u.Email)
	for aid, a := range r.s.activities {
		if a.ActorID == id {
			delete(r.s.activities, aid)
		}
	}
	return 1, nil
}

type Activities struct{ s *Store }

func (r *Activities) Create(ctx context.Context, a *activity.Activity) error {
	if err := live(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[a.ActorID]; !ok {
		return fmt.Errorf("%w: activities_user_id_fkey", storage.ErrForeignKey)
	}
	r.s.lastAct++
	a.ID = r.s.lastAct
	stored := *a
	stored.Actor = nil
	r.s.activities[a.ID] = stored
	return nil
}

func (r *Activities) GetByID(ctx context.Context, id int64) (*activity.Activity, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.activities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

// Update applies p atomically and returns the updated record.
func (r *Activities) Update(ctx context.Context, id int64, p activity.Patch, now time.Time) (*activity.Activity, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.activities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p.Apply(&a)
	a.UpdatedAt = now
	r.s.activities[id] = a
	return &a, nil
}

func (r *Activities) Delete(ctx context.Context, id int64) (int64, error) {
	if err := live(ctx); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.activities[id]; !ok {
		return 0, nil
	}
	delete(r.s.activities, id)
	return 1, nil
}

// List returns matching records newest first with their actor attached.
func (r *Activities) List(ctx context.Context, f activity.Filter, limit, offset int) ([]activity.Activity, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	var out []activity.Activity
	for _, a := range r.s.activities {
		if !f.Match(a) {
			continue
		}
		if u, ok := r.s.users[a.ActorID]; ok {
			sum := u.Summary()
			a.Actor = &sum
		}
		out = append(out, a)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return window(out, limit, offset), nil
}

func (r *Activities) Count(ctx context.Context, f activity.Filter) (int, error) {
	if err := live(ctx); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, a := range r.s.activities {
		if f.Match(a) {
			n++
		}
	}
	return n, nil
}

func (r *Activities) Total(ctx context.Context) (int, error) {
	return r.Count(ctx, activity.Filter{})
}

// CountByActor groups records by actor, ordered by actor id.
func (r *Activities) CountByActor(ctx context.Context) ([]activity.ActorCount, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	counts := make(map[int64]int)
	for _, a := range r.s.activities {
		counts[a.ActorID]++
	}
	r.s.mu.RUnlock()

	out := make([]activity.ActorCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, activity.ActorCount{ActorID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}

// CountByAction groups records by action, ordered by action.
func (r *Activities) CountByAction(ctx context.Context) ([]activity.ActionCount, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	byAction := make(map[string]*activity.ActionCount)
	for _, a := range r.s.activities {
		c, ok := byAction[a.Action]
		if !ok {
			c = &activity.ActionCount{Action: a.Action, FirstID: a.ID}
			byAction[a.Action] = c
		}
		c.Count++
		if a.ID < c.FirstID {
			c.FirstID = a.ID
		}
	}
	r.s.mu.RUnlock()

	out := make([]activity.ActionCount, 0, len(byAction))
	for _, c := range byAction {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out, nil
}

func newer(ti time.Time, idi int64, tj time.Time, idj int64) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}

func window[T any](all []T, limit, offset int) []T {
	if offset < 0 || offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return all[offset:end]
}
