package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/utilities"
)

// DefaultTTL is the access token lifetime when none is configured.
const DefaultTTL = 60 * time.Minute

// Claims carried by access tokens. sub holds the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Token is a signed access token together with its decoded claims.
type Token struct {
	Raw       string
	Subject   int64
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies stateless HS256 bearer tokens. There is no
// server-side revocation: a token is good until it expires.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue mints a token for subject expiring TTL from now.
func (s *TokenService) Issue(subject int64) (Token, error) {
	now := s.now().Truncate(time.Second)
	return s.sign(subject, now, now.Add(s.ttl))
}

// Verify checks signature, issuer and expiry. Expired tokens fail with
// apperr.ErrTokenExpired, everything else with apperr.ErrTokenInvalid.
func (s *TokenService) Verify(raw string) (Token, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Token{}, apperr.Wrap(apperr.CodeTokenExpired, apperr.ErrTokenExpired.Message, err)
		}
		return Token{}, apperr.Wrap(apperr.CodeTokenInvalid, apperr.ErrTokenInvalid.Message, err)
	}
	sub, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || sub <= 0 {
		return Token{}, apperr.Wrap(apperr.CodeTokenInvalid, apperr.ErrTokenInvalid.Message,
			fmt.Errorf("bad subject %q", claims.Subject))
	}
	tok := Token{Raw: raw, Subject: sub, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		tok.IssuedAt = claims.IssuedAt.Time
	}
	return tok, nil
}

// Refresh exchanges a currently valid token for a new one for the same
// subject. The new expiry is always strictly later than the old one.
func (s *TokenService) Refresh(raw string) (Token, error) {
	old, err := s.Verify(raw)
	if err != nil {
		return Token{}, err
	}
	now := s.now().Truncate(time.Second)
	exp := now.Add(s.ttl)
	if !exp.After(old.ExpiresAt) {
		// exp is encoded in whole seconds
		exp = old.ExpiresAt.Add(time.Second)
	}
	return s.sign(old.Subject, now, exp)
}

func (s *TokenService) sign(subject int64, iat, exp time.Time) (Token, error) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   strconv.FormatInt(subject, 10),
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        utilities.NewKSUID(),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, apperr.Wrap(apperr.CodeInternal, "sign token", err)
	}
	return Token{Raw: raw, Subject: subject, ID: claims.ID, IssuedAt: iat, ExpiresAt: exp}, nil
}
