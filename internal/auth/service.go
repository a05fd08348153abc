package auth

import (
	"context"
	"errors"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
)

// Credentials is the part of the credential store authentication needs.
type Credentials interface {
	Register(ctx context.Context, in user.RegisterInput) (*entity.User, error)
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
}

// AuthService ties the credential store to token issuance.
type AuthService struct {
	users  Credentials
	tokens *TokenService
}

func NewAuthService(users Credentials, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Tokens() *TokenService { return s.tokens }

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	return s.tokens.Issue(u.ID)
}

// Register creates the user and logs them in.
func (s *AuthService) Register(ctx context.Context, in user.RegisterInput) (*entity.User, Token, error) {
	u, err := s.users.Register(ctx, in)
	if err != nil {
		return nil, Token{}, err
	}
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, Token{}, err
	}
	return u, tok, nil
}

// Refresh reissues a valid token. Tokens of deleted users are not renewed.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Token, error) {
	old, err := s.tokens.Verify(raw)
	if err != nil {
		return Token{}, err
	}
	if _, err := s.identity(ctx, old.Subject); err != nil {
		return Token{}, err
	}
	return s.tokens.Refresh(raw)
}

// CurrentIdentity verifies raw and loads its user.
func (s *AuthService) CurrentIdentity(ctx context.Context, raw string) (*entity.User, error) {
	tok, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	return s.identity(ctx, tok.Subject)
}

// Identity loads the user behind an already verified subject.
func (s *AuthService) Identity(ctx context.Context, subject int64) (*entity.User, error) {
	return s.identity(ctx, subject)
}

func (s *AuthService) identity(ctx context.Context, subject int64) (*entity.User, error) {
	u, err := s.users.Get(ctx, subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Wrap(apperr.CodeTokenInvalid, apperr.ErrTokenInvalid.Message, err)
	}
	return u, err
}
