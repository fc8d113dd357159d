package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleettrack/internal/audit"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/httputil"
)

// AuditHandler serves the read-only audit trail. There is no write surface:
// entries are only ever produced by the recorder.
type AuditHandler struct {
	recorder *audit.Recorder
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/api/audit", h.list)
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request) {
	var filter audit.Filter
	q := r.URL.Query()

	if raw := q.Get("actor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid actor id"))
			return
		}
		filter.ActorID = &id
	}
	filter.Action = audit.Action(q.Get("action"))
	filter.EntityType = audit.EntityType(q.Get("entity"))
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
		filter.Limit = limit
	}

	entries, err := h.recorder.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
