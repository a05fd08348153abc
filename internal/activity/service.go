package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/pagination"
)

// Repository is the activity log persistence contract. Implementations must
// reject records whose actor does not exist (storage.ErrForeignKey) and apply
// updates atomically per record.
type Repository interface {
	Create(ctx context.Context, a *entity.Activity) error
	GetByID(ctx context.Context, id int64) (*entity.Activity, error)
	Update(ctx context.Context, id int64, p entity.Patch, now time.Time) (*entity.Activity, error)
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, f entity.Filter, limit, offset int) ([]entity.Activity, error)
	Count(ctx context.Context, f entity.Filter) (int, error)
}

// ActivityService is the append-mostly audit log.
type ActivityService struct {
	repo Repository
	now  func() time.Time
}

func NewActivityService(r Repository) *ActivityService {
	return &ActivityService{repo: r, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *ActivityService) WithClock(now func() time.Time) *ActivityService {
	s.now = now
	return s
}

// AppendInput is the payload for a new record. user_id is accepted as an
// alias of actor_id.
type AppendInput struct {
	ActorID     int64   `json:"actor_id"`
	UserID      int64   `json:"user_id"`
	Action      string  `json:"action"`
	Description *string `json:"description"`
}

func (in AppendInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ActorID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.Action, validation.Required, validation.Length(1, 255)),
	)
}

func (in AppendInput) normalize() AppendInput {
	if in.ActorID == 0 {
		in.ActorID = in.UserID
	}
	in.Action = strings.TrimSpace(in.Action)
	return in
}

// Append records that actor performed action.
func (s *ActivityService) Append(ctx context.Context, in AppendInput) (*entity.Activity, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return nil, apperr.FromValidation(err)
	}
	now := s.now().UTC()
	a := &entity.Activity{
		ActorID:     in.ActorID,
		Action:      in.Action,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, apperr.FromStorage(err)
	}
	return a, nil
}

// List returns one page of records matching f, newest first.
func (s *ActivityService) List(ctx context.Context, f entity.Filter, p pagination.Params) (pagination.Page[entity.Activity], error) {
	p = p.Normalize()
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return pagination.Page[entity.Activity]{}, apperr.FromStorage(err)
	}
	items, err := s.repo.List(ctx, f, p.Limit(), p.Offset())
	if err != nil {
		return pagination.Page[entity.Activity]{}, apperr.FromStorage(err)
	}
	return pagination.New(items, p, total), nil
}

func (s *ActivityService) Get(ctx context.Context, id int64) (*entity.Activity, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return a, nil
}

// Update changes action and/or description. An empty patch returns the record
// unchanged.
func (s *ActivityService) Update(ctx context.Context, id int64, p entity.Patch) (*entity.Activity, error) {
	if p.Action != nil {
		action := strings.TrimSpace(*p.Action)
		p.Action = &action
		err := validation.Errors{
			"action": validation.Validate(action, validation.Required, validation.Length(1, 255)),
		}.Filter()
		if err != nil {
			return nil, apperr.FromValidation(err)
		}
	}
	if p.Empty() {
		return s.Get(ctx, id)
	}
	a, err := s.repo.Update(ctx, id, p, s.now().UTC())
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return a, nil
}

// Remove hard-deletes a record. Removing a missing record is NotFound.
func (s *ActivityService) Remove(ctx context.Context, id int64) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperr.FromStorage(err)
	}
	if rows == 0 {
		return apperr.Wrap(apperr.CodeNotFound, "activity not found", fmt.Errorf("activity %d", id))
	}
	return nil
}
