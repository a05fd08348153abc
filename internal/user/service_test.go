package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage/memory"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/pagination"
)

func newService() *user.UserService {
	return user.NewUserService(memory.New().Users(), user.BcryptHasher{Cost: bcrypt.MinCost})
}

func TestRegister_NormalizesEmailAndHidesPassword(t *testing.T) {
	svc := newService()
	u, err := svc.Register(context.Background(), user.RegisterInput{
		Name: " Alice ", Email: "  Alice@Example.COM ", Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "password1", u.PasswordHash)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestRegister_Validation(t *testing.T) {
	cases := []struct {
		name  string
		in    user.RegisterInput
		field string
	}{
		{"missing name", user.RegisterInput{Email: "a@x.com", Password: "password1"}, "name"},
		{"bad email", user.RegisterInput{Name: "A", Email: "not-an-email", Password: "password1"}, "email"},
		{"short password", user.RegisterInput{Name: "A", Email: "a@x.com", Password: "short"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newService().Register(context.Background(), tc.in)
			require.ErrorIs(t, err, apperr.Validation(nil))
			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Fields, tc.field)
		})
	}
}

func TestRegister_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, user.RegisterInput{Name: "A", Email: "a@x.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, user.RegisterInput{Name: "B", Email: "A@X.com", Password: "password2"})
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.CodeValidation, e.Code)
	assert.Equal(t, "has already been taken", e.Fields["email"])
}

func TestAuthenticate(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	registered, err := svc.Register(ctx, user.RegisterInput{Name: "A", Email: "a@x.com", Password: "password1"})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "A@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, got.ID)

	_, wrongPassword := svc.Authenticate(ctx, "a@x.com", "password2")
	_, unknownEmail := svc.Authenticate(ctx, "b@x.com", "password1")
	require.ErrorIs(t, wrongPassword, apperr.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, apperr.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestGetListDelete(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := svc.Register(ctx, user.RegisterInput{Name: email, Email: email, Password: "password1"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, pagination.Params{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.LastPage)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "a@x.com", page.Data[0].Email)

	require.NoError(t, svc.Delete(ctx, 2))
	_, err = svc.Get(ctx, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 2), apperr.ErrNotFound)
}

func TestCanceledContextIsStorageUnavailable(t *testing.T) {
	svc := newService().WithClock(func() time.Time { return time.Unix(0, 0) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Get(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}
