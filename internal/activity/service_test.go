package activity_test

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage/memory"
	userentity "github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/pagination"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func setup(t *testing.T, actors int) (*memory.Store, *activity.ActivityService) {
	t.Helper()
	store := memory.New()
	for i := 1; i <= actors; i++ {
		email := fmt.Sprintf("u%d@x.com", i)
		require.NoError(t, store.Users().Create(context.Background(), &userentity.User{
			Name: fmt.Sprintf("User %d", i), Email: email, PasswordHash: "h",
		}))
	}
	clock := &stepClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	return store, activity.NewActivityService(store.Activities()).WithClock(clock.now)
}

func TestAppend_UnknownActor(t *testing.T) {
	_, svc := setup(t, 1)
	_, err := svc.Append(context.Background(), activity.AppendInput{ActorID: 99, Action: "login"})
	assert.ErrorIs(t, err, apperr.ErrUnknownActor)
}

func TestAppend_Validation(t *testing.T) {
	_, svc := setup(t, 1)
	_, err := svc.Append(context.Background(), activity.AppendInput{ActorID: 1, Action: "   "})
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.CodeValidation, e.Code)
	assert.Contains(t, e.Fields, "action")

	_, err = svc.Append(context.Background(), activity.AppendInput{Action: "login"})
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Fields, "actor_id")
}

func TestAppend_UserIDAlias(t *testing.T) {
	_, svc := setup(t, 1)
	a, err := svc.Append(context.Background(), activity.AppendInput{UserID: 1, Action: " login "})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ActorID)
	assert.Equal(t, "login", a.Action)
	assert.Nil(t, a.Description)
}

func TestAppendThenListIncludesRecordOnce(t *testing.T) {
	_, svc := setup(t, 2)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, activity.AppendInput{ActorID: 2, Action: "noise"})
		require.NoError(t, err)
	}
	a, err := svc.Append(ctx, activity.AppendInput{ActorID: 1, Action: "login"})
	require.NoError(t, err)

	actor := int64(1)
	page, err := svc.List(ctx, entity.Filter{ActorID: &actor}, pagination.Params{Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, a.ID, page.Data[0].ID)
	require.NotNil(t, page.Data[0].Actor)
	assert.Equal(t, "User 1", page.Data[0].Actor.Name)
}

func TestList_PaginatesTwelveRecords(t *testing.T) {
	_, svc := setup(t, 1)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		_, err := svc.Append(ctx, activity.AppendInput{ActorID: 1, Action: fmt.Sprintf("action %d", i)})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, entity.Filter{}, pagination.FromQuery(url.Values{"page": {"1"}}))
	require.NoError(t, err)
	assert.Len(t, first.Data, 10)
	assert.Equal(t, 12, first.Total)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, 2, first.LastPage)
	assert.Equal(t, "action 12", first.Data[0].Action)

	second, err := svc.List(ctx, entity.Filter{}, pagination.FromQuery(url.Values{"page": {"2"}}))
	require.NoError(t, err)
	require.Len(t, second.Data, 2)
	assert.Equal(t, 12, second.Total)
	assert.Equal(t, "action 2", second.Data[0].Action)
	assert.Equal(t, "action 1", second.Data[1].Action)
}

func TestList_PageBeyondIntRangeIsEmpty(t *testing.T) {
	_, svc := setup(t, 1)
	ctx := context.Background()
	_, err := svc.Append(ctx, activity.AppendInput{ActorID: 1, Action: "login"})
	require.NoError(t, err)

	page, err := svc.List(ctx, entity.Filter{}, pagination.FromQuery(url.Values{"page": {"922337203685477582"}}))
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.NotNil(t, page.Data)
	assert.Equal(t, 1, page.Total)
}

func TestList_Filters(t *testing.T) {
	_, svc := setup(t, 2)
	ctx := context.Background()
	for _, in := range []activity.AppendInput{
		{ActorID: 1, Action: "User Login"},
		{ActorID: 1, Action: "logout"},
		{ActorID: 2, Action: "LOGIN failed"},
		{ActorID: 2, Action: "export 100%"},
	} {
		_, err := svc.Append(ctx, in)
		require.NoError(t, err)
	}

	f, err := entity.ParseFilter(url.Values{"action": {"login"}})
	require.NoError(t, err)
	page, err := svc.List(ctx, f, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	f, err = entity.ParseFilter(url.Values{"action": {"login"}, "user_id": {"2"}})
	require.NoError(t, err)
	page, err = svc.List(ctx, f, pagination.Params{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "LOGIN failed", page.Data[0].Action)

	f, err = entity.ParseFilter(url.Values{"action": {"%"}})
	require.NoError(t, err)
	page, err = svc.List(ctx, f, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestUpdate(t *testing.T) {
	_, svc := setup(t, 1)
	ctx := context.Background()
	desc := "first"
	a, err := svc.Append(ctx, activity.AppendInput{ActorID: 1, Action: "login", Description: &desc})
	require.NoError(t, err)

	action := "logout"
	got, err := svc.Update(ctx, a.ID, entity.Patch{Action: &action})
	require.NoError(t, err)
	assert.Equal(t, "logout", got.Action)
	require.NotNil(t, got.Description)
	assert.Equal(t, "first", *got.Description)
	assert.Equal(t, a.CreatedAt, got.CreatedAt)
	assert.Equal(t, a.ActorID, got.ActorID)
	assert.True(t, got.UpdatedAt.After(a.UpdatedAt))

	got, err = svc.Update(ctx, a.ID, entity.Patch{Description: entity.NullableString{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, got.Description)
	assert.Equal(t, "logout", got.Action)

	unchanged, err := svc.Update(ctx, a.ID, entity.Patch{})
	require.NoError(t, err)
	assert.Equal(t, got.UpdatedAt, unchanged.UpdatedAt)

	blank := " "
	_, err = svc.Update(ctx, a.ID, entity.Patch{Action: &blank})
	assert.ErrorIs(t, err, apperr.Validation(nil))

	_, err = svc.Update(ctx, 999, entity.Patch{Action: &action})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Update(ctx, 999, entity.Patch{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRemove(t *testing.T) {
	_, svc := setup(t, 1)
	ctx := context.Background()
	a, err := svc.Append(ctx, activity.AppendInput{ActorID: 1, Action: "login"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, a.ID))
	assert.ErrorIs(t, svc.Remove(ctx, a.ID), apperr.ErrNotFound)
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeletingActorCascades(t *testing.T) {
	store, svc := setup(t, 2)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := svc.Append(ctx, activity.AppendInput{ActorID: 1 + int64(i%2), Action: "login"})
		require.NoError(t, err)
	}
	_, err := store.Users().Delete(ctx, 1)
	require.NoError(t, err)

	actor := int64(1)
	page, err := svc.List(ctx, entity.Filter{ActorID: &actor}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Data)

	all, err := svc.List(ctx, entity.Filter{}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)
}

func TestStoreFailureIsStorageUnavailable(t *testing.T) {
	_, svc := setup(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_, err := svc.List(ctx, entity.Filter{}, pagination.Params{})
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}
