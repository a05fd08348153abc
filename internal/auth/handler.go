package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/httputil"
)

type Handler struct {
	svc     *AuthService
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewHandler(svc *AuthService, logger *zap.SugaredLogger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, logger: logger, metrics: m}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body of login and refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func tokenResponse(t Token) TokenResponse {
	return TokenResponse{
		AccessToken: t.Raw,
		TokenType:   "bearer",
		ExpiresIn:   int64(t.ExpiresAt.Sub(t.IssuedAt).Seconds()),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in user.RegisterInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		apperr.Write(w, apperr.InvalidBody(err))
		return
	}
	u, tok, err := h.svc.Register(r.Context(), in)
	h.metrics.AuthAttempt("register", err == nil)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	h.logger.Infow("user registered", "user_id", u.ID)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"user": u, "token": tok.Raw})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		apperr.Write(w, apperr.InvalidBody(err))
		return
	}
	tok, err := h.svc.Login(r.Context(), req.Email, req.Password)
	h.metrics.AuthAttempt("login", err == nil)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	h.logger.Debugw("login ok", "user_id", tok.Subject, "jti", tok.ID)
	httputil.WriteJSON(w, http.StatusOK, tokenResponse(tok))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := BearerToken(r)
	if !ok {
		apperr.Write(w, apperr.ErrUnauthorized)
		return
	}
	tok, err := h.svc.Refresh(r.Context(), raw)
	h.metrics.AuthAttempt("refresh", err == nil)
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse(tok))
}

// Me returns the identity behind the bearer token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.ErrUnauthorized)
		return
	}
	u, err := h.svc.Identity(r.Context(), sub)
	if err != nil {
		h.fail(w, r, "whoami", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// fail logs the precise reason and answers with the public one. Token
// problems collapse to a plain 401 so callers cannot tell them apart.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := apperr.CodeOf(err)
	switch code {
	case apperr.CodeTokenExpired, apperr.CodeTokenInvalid:
		h.logger.Warnw("token rejected", "op", op, "reason", code, "err", err)
		apperr.Write(w, apperr.ErrUnauthorized)
		return
	case apperr.CodeInvalidCredentials, apperr.CodeValidation:
		h.logger.Debugw("auth request rejected", "op", op, "reason", code)
	default:
		h.logger.Errorw("auth request failed", "op", op, "path", r.URL.Path, "err", err)
	}
	apperr.Write(w, err)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[len("bearer "):])
	return tok, tok != ""
}
