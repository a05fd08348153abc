package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/utilities"
)

var nop = zap.NewNop().Sugar()

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRecover_Panic(t *testing.T) {
	h := RecoverMiddleware(nop)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
}

func TestRecover_NoPanic(t *testing.T) {
	rec := httptest.NewRecorder()
	RecoverMiddleware(nop)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(utilities.NewIDGenerator(1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id\nwith newline", seen)
	assert.NotEmpty(t, seen)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestLoggingRecordsStatus(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := LoggingMiddleware(nop, m)(mux)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `route="GET /teapot",status="418"`)
}

func TestExpectsJSON(t *testing.T) {
	cases := []struct {
		name   string
		accept string
		xhr    bool
		want   bool
	}{
		{"application/json", "application/json", false, true},
		{"json with params", "application/json; charset=utf-8", false, true},
		{"problem+json", "application/problem+json", false, true},
		{"json preferred", "application/json, text/html", false, true},
		{"html preferred", "text/html, application/json", false, false},
		{"wildcard", "*/*", false, false},
		{"none", "", false, false},
		{"xhr wildcard", "*/*", true, true},
		{"xhr no accept", "", true, true},
		{"xhr html", "text/html", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			if tc.xhr {
				req.Header.Set("X-Requested-With", "XMLHttpRequest")
			}
			assert.Equal(t, tc.want, ExpectsJSON(req))
		})
	}
}

func TestRequireJSON_AllowList(t *testing.T) {
	h := RequireJSON("/api", DefaultJSONAllowList)(okHandler())
	cases := map[string]int{
		"/api/activities":            http.StatusNotAcceptable,
		"/api/health":                http.StatusOK,
		"/api/api-docs.json":         http.StatusOK,
		"/api-docs.json":             http.StatusOK,
		"/docs":                      http.StatusOK,
		"/docs/index.html":           http.StatusOK,
		"/api/documentation":         http.StatusOK,
		"/api/documentation/swagger": http.StatusOK,
		"/metrics":                   http.StatusOK,
		"/docsx":                     http.StatusNotAcceptable,
		"/api/healthz":               http.StatusNotAcceptable,
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, want, rec.Code)
			if want == http.StatusNotAcceptable {
				assert.Contains(t, rec.Body.String(), `"message":"Only JSON requests are allowed."`)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := auth.NewTokenService([]byte("k"), "iss", time.Hour).WithClock(clock)
	m := metrics.New()

	var subject int64
	h := RequireAuth(tokens, nop, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = auth.SubjectFromContext(r.Context())
	}))
	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	tok, err := tokens.Issue(5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call("Bearer "+tok.Raw))
	assert.Equal(t, int64(5), subject)

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer junk"))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+tok.Raw))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `audit_tokens_rejected_total{reason="expired"} 1`)
	assert.Contains(t, body, `audit_tokens_rejected_total{reason="invalid"} 1`)
	assert.Contains(t, body, `audit_tokens_rejected_total{reason="missing"} 1`)
}
