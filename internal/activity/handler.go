package activity

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/entity"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/httputil"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/pagination"
)

type Handler struct {
	svc     *ActivityService
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewHandler(svc *ActivityService, logger *zap.SugaredLogger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, logger: logger, metrics: m}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := entity.ParseFilter(q)
	if err != nil {
		h.fail(w, r, apperr.FromValidation(err))
		return
	}
	page, err := h.svc.List(r.Context(), f, pagination.FromQuery(q))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// Create appends a record. Without actor_id the caller is the actor.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in AppendInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		h.fail(w, r, apperr.InvalidBody(err))
		return
	}
	if in.ActorID == 0 && in.UserID == 0 {
		if sub, ok := auth.SubjectFromContext(r.Context()); ok {
			in.ActorID = sub
		}
	}
	a, err := h.svc.Append(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.ActivityWrite("create")
	h.logger.Debugw("activity appended", "id", a.ID, "actor_id", a.ActorID, "action", a.Action)
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p entity.Patch
	if err := httputil.ReadJSON(r, &p); err != nil {
		h.fail(w, r, apperr.InvalidBody(err))
		return
	}
	a, err := h.svc.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.ActivityWrite("update")
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Remove(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.ActivityWrite("delete")
	h.logger.Infow("activity deleted", "id", id)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Activity deleted."})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(apperr.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.Errorw("activity request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		h.logger.Debugw("activity request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	apperr.Write(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		apperr.Write(w, apperr.ErrNotFound)
		return 0, false
	}
	return id, true
}
