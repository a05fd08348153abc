package router

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
)

// DefaultJSONAllowList holds the documentation and probe paths that are
// served without JSON negotiation. A trailing "/*" matches any sub-path.
var DefaultJSONAllowList = []string{
	"/docs",
	"/docs/*",
	"/api/documentation",
	"/api/documentation/*",
	"/api-docs.json",
	"/health",
	"/metrics",
}

// RequireJSON rejects requests that do not expect a JSON response with 406,
// before any handler runs. Paths on allow bypass the check, matched both as
// given and relative to prefix.
func RequireJSON(prefix string, allow []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if allowed(path, allow) || allowed(relative(path, prefix), allow) || ExpectsJSON(r) {
				next.ServeHTTP(w, r)
				return
			}
			apperr.Write(w, apperr.ErrNotAcceptable)
		})
	}
}

func relative(path, prefix string) string {
	if prefix != "" && strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix):]
	}
	return path
}

func allowed(path string, allow []string) bool {
	for _, p := range allow {
		if base, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(path, base+"/") {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// ExpectsJSON reports whether the caller wants JSON: the preferred Accept
// media range is JSON (application/json or a +json suffix), or it is an XHR
// request that accepts any type.
func ExpectsJSON(r *http.Request) bool {
	first := firstMediaRange(r.Header.Get("Accept"))
	if strings.Contains(first, "/json") || strings.Contains(first, "+json") {
		return true
	}
	xhr := r.Header.Get("X-Requested-With") == "XMLHttpRequest"
	return xhr && (first == "" || first == "*/*" || first == "*")
}

func firstMediaRange(accept string) string {
	first, _, _ := strings.Cut(accept, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.ToLower(strings.TrimSpace(first))
}

// RequireAuth admits requests carrying a valid bearer token and stores the
// subject in the request context. Expired and invalid tokens are logged
// apart but both answered with a plain 401.
func RequireAuth(tokens *auth.TokenService, logger *zap.SugaredLogger, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := auth.BearerToken(r)
			if !ok {
				m.TokenRejected("missing")
				apperr.Write(w, apperr.ErrUnauthorized)
				return
			}
			tok, err := tokens.Verify(raw)
			if err != nil {
				reason := "invalid"
				if apperr.CodeOf(err) == apperr.CodeTokenExpired {
					reason = "expired"
				}
				m.TokenRejected(reason)
				logger.Infow("bearer token rejected",
					"reason", reason,
					"path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
					"err", err,
				)
				apperr.Write(w, apperr.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), tok.Subject)))
		})
	}
}
