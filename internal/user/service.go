package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/pagination"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repository is the Credential Store persistence contract.
type Repository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context, limit, offset int) ([]entity.User, error)
	Count(ctx context.Context) (int, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]entity.User, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// UserService owns identity records: registration, credential checks and lookups.
type UserService struct {
	repo   Repository
	hasher PasswordHasher
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(r Repository, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{repo: r, hasher: hasher, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Email, validation.Required, validation.Length(1, 255), is.Email),
		// bcrypt only looks at the first 72 bytes
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
	)
}

// NormalizeEmail is applied on every write and every credential lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates the input, hashes the password and stores the user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, apperr.FromValidation(err)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "hash password", err)
	}
	now := s.now().UTC()
	u := &entity.User{
		Name:         in.Name,
		Email:        NormalizeEmail(in.Email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperr.Validation(map[string]string{"email": "has already been taken"})
		}
		return nil, apperr.FromStorage(err)
	}
	return u, nil
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password fail identically to avoid user enumeration.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// burn comparable time so response latency does not leak existence
			s.hasher.Verify(s.dummy(), password)
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, apperr.FromStorage(err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return u, nil
}

// List returns one page of users ordered by id.
func (s *UserService) List(ctx context.Context, p pagination.Params) (pagination.Page[entity.User], error) {
	p = p.Normalize()
	total, err := s.repo.Count(ctx)
	if err != nil {
		return pagination.Page[entity.User]{}, apperr.FromStorage(err)
	}
	users, err := s.repo.List(ctx, p.Limit(), p.Offset())
	if err != nil {
		return pagination.Page[entity.User]{}, apperr.FromStorage(err)
	}
	return pagination.New(users, p, total), nil
}

// Delete removes the user and, through the store, all of its activities.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperr.FromStorage(err)
	}
	if rows == 0 {
		return apperr.Wrap(apperr.CodeNotFound, "user not found", fmt.Errorf("user %d", id))
	}
	return nil
}
