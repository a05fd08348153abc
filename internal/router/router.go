package router

import (
	"context"
	_ "embed"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/report"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/utilities"
)

//go:embed api-docs.json
var apiDocs []byte

// Deps are the services the HTTP surface is built from. Metrics and Ping are
// optional.
type Deps struct {
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Metrics
	Auth       *auth.AuthService
	Users      *user.UserService
	Activities *activity.ActivityService
	Reports    *report.ReportService
	RequestIDs *utilities.IDGenerator
	Ping       func(ctx context.Context) error
	Prefix     string
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux
// and wraps them with the middleware stack.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	p := d.Prefix
	protect := RequireAuth(d.Auth.Tokens(), d.Logger, d.Metrics)
	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	mux.HandleFunc("GET "+p+"/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				d.Logger.Warnw("health check failed", "err", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET "+p+"/api-docs.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(apiDocs)
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	authHandler := auth.NewHandler(d.Auth, d.Logger, d.Metrics)
	mux.HandleFunc("POST "+p+"/register", authHandler.Register)
	mux.HandleFunc("POST "+p+"/login", authHandler.Login)
	// refresh reads the bearer token itself so it can renew it
	private("POST "+p+"/refresh", authHandler.Refresh)
	private("GET "+p+"/user", authHandler.Me)

	userHandler := user.NewHandler(d.Users, d.Logger)
	private("GET "+p+"/users", userHandler.List)
	private("GET "+p+"/users/{id}", userHandler.Show)
	private("DELETE "+p+"/users/{id}", userHandler.Delete)

	activityHandler := activity.NewHandler(d.Activities, d.Logger, d.Metrics)
	private("GET "+p+"/activities", activityHandler.List)
	private("POST "+p+"/activities", activityHandler.Create)
	private("GET "+p+"/activities/{id}", activityHandler.Show)
	private("PUT "+p+"/activities/{id}", activityHandler.Update)
	private("PATCH "+p+"/activities/{id}", activityHandler.Update)
	private("DELETE "+p+"/activities/{id}", activityHandler.Delete)

	reportHandler := report.NewHandler(d.Reports, d.Logger, d.Metrics)
	private("GET "+p+"/reports/recent-users", reportHandler.RecentUsers)
	private("GET "+p+"/reports/active-users", reportHandler.ActiveUsers)
	private("GET "+p+"/reports/user-actions", reportHandler.UserActions)
	private("GET "+p+"/reports/activity-metrics", reportHandler.ActivityMetrics)

	return Chain(mux,
		RecoverMiddleware(d.Logger),
		RequestIDMiddleware(d.RequestIDs),
		LoggingMiddleware(d.Logger, d.Metrics),
		SecurityHeadersMiddleware(),
		RequireJSON(p, DefaultJSONAllowList),
	)
}
