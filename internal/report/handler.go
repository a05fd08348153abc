package report

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/httputil"
)

type Handler struct {
	svc     *ReportService
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewHandler(svc *ReportService, logger *zap.SugaredLogger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, logger: logger, metrics: m}
}

// RecentUsers serves GET /reports/recent-users?days=N.
func (h *Handler) RecentUsers(w http.ResponseWriter, r *http.Request) {
	days, ok := h.intParam(w, r, "days")
	if !ok {
		return
	}
	defer h.metrics.TimeReport("recent-users")()
	users, err := h.svc.RecentActors(r.Context(), days)
	h.respond(w, r, users, err)
}

// ActiveUsers serves GET /reports/active-users?limit=N.
func (h *Handler) ActiveUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intParam(w, r, "limit")
	if !ok {
		return
	}
	defer h.metrics.TimeReport("active-users")()
	users, err := h.svc.MostActive(r.Context(), limit)
	h.respond(w, r, users, err)
}

// UserActions serves GET /reports/user-actions.
func (h *Handler) UserActions(w http.ResponseWriter, r *http.Request) {
	defer h.metrics.TimeReport("user-actions")()
	counts, err := h.svc.ActionCounts(r.Context())
	h.respond(w, r, counts, err)
}

// ActivityMetrics serves GET /reports/activity-metrics.
func (h *Handler) ActivityMetrics(w http.ResponseWriter, r *http.Request) {
	defer h.metrics.TimeReport("activity-metrics")()
	m, err := h.svc.Metrics(r.Context())
	h.respond(w, r, m, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		h.logger.Errorw("report failed", "path", r.URL.Path, "err", err)
		apperr.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// intParam reads an optional non-negative integer query parameter; absent is 0.
func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		apperr.Write(w, apperr.Validation(map[string]string{name: "must be a non-negative integer"}))
		return 0, false
	}
	return n, true
}
