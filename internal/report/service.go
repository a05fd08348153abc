// Package report derives read-only summaries from the activity log. Nothing is
// cached: every call recomputes from the stores, so results reflect some state
// between the start and the end of the call.
package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage"
	userentity "github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
)

// DefaultWindowDays is the look-back of RecentActors.
const DefaultWindowDays = 30

// Activities is the read side of the activity log used by reports.
type Activities interface {
	Total(ctx context.Context) (int, error)
	CountByActor(ctx context.Context) ([]entity.ActorCount, error)
	CountByAction(ctx context.Context) ([]entity.ActionCount, error)
}

// Users is the read side of the credential store used by reports.
type Users interface {
	GetByID(ctx context.Context, id int64) (*userentity.User, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]userentity.User, error)
}

// ActiveUser is a user with the number of records attributed to it.
type ActiveUser struct {
	userentity.User
	ActivitiesCount int `json:"activities_count"`
}

// Metrics is the global summary. Name fields are null on an empty log.
type Metrics struct {
	TotalActivities  int     `json:"total_activities"`
	MostActiveUser   *string `json:"most_active_user"`
	MostCommonAction *string `json:"most_common_action"`
}

type ReportService struct {
	activities Activities
	users      Users
	now        func() time.Time
}

func NewReportService(a Activities, u Users) *ReportService {
	return &ReportService{activities: a, users: u, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// RecentActors returns users created within the last windowDays days, newest
// first. windowDays <= 0 means DefaultWindowDays.
func (s *ReportService) RecentActors(ctx context.Context, windowDays int) ([]userentity.User, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := s.now().UTC().AddDate(0, 0, -windowDays)
	users, err := s.users.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if users == nil {
		users = []userentity.User{}
	}
	return users, nil
}

// MostActive ranks actors by record count, highest first, ties by ascending
// id. topN <= 0 returns every actor that has at least one record.
func (s *ReportService) MostActive(ctx context.Context, topN int) ([]ActiveUser, error) {
	ranked, err := s.rankActors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ActiveUser, 0, len(ranked))
	for _, c := range ranked {
		if topN > 0 && len(out) == topN {
			break
		}
		u, err := s.users.GetByID(ctx, c.ActorID)
		if errors.Is(err, storage.ErrNotFound) {
			// deleted between the two reads
			continue
		}
		if err != nil {
			return nil, apperr.FromStorage(err)
		}
		out = append(out, ActiveUser{User: *u, ActivitiesCount: c.Count})
	}
	return out, nil
}

// ActionCounts is the number of records per actor, ordered by actor id.
func (s *ReportService) ActionCounts(ctx context.Context) ([]entity.ActorCount, error) {
	counts, err := s.activities.CountByActor(ctx)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if counts == nil {
		counts = []entity.ActorCount{}
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].ActorID < counts[j].ActorID })
	return counts, nil
}

// Metrics summarizes the whole log. The most common action is the one with
// the highest count; among equals the one seen first (lowest record id) wins.
func (s *ReportService) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	total, err := s.activities.Total(ctx)
	if err != nil {
		return Metrics{}, apperr.FromStorage(err)
	}
	m.TotalActivities = total

	top, err := s.MostActive(ctx, 1)
	if err != nil {
		return Metrics{}, err
	}
	if len(top) > 0 {
		name := top[0].Name
		m.MostActiveUser = &name
	}

	actions, err := s.activities.CountByAction(ctx)
	if err != nil {
		return Metrics{}, apperr.FromStorage(err)
	}
	if len(actions) > 0 {
		sort.Slice(actions, func(i, j int) bool {
			if actions[i].Count != actions[j].Count {
				return actions[i].Count > actions[j].Count
			}
			return actions[i].FirstID < actions[j].FirstID
		})
		action := actions[0].Action
		m.MostCommonAction = &action
	}
	return m, nil
}

func (s *ReportService) rankActors(ctx context.Context) ([]entity.ActorCount, error) {
	counts, err := s.activities.CountByActor(ctx)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].ActorID < counts[j].ActorID
	})
	return counts, nil
}
