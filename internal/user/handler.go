package user

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/httputil"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/pagination"
)

// Handler exposes the users resource.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), pagination.FromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Infow("user deleted", "user_id", id)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted."})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(apperr.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.Errorw("user request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		h.logger.Debugw("user request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
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
