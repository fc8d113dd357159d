package authz

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleettrack/internal/audit"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/httputil"
	"fleettrack/pkg/requestcontext"
)

// RequestCache attaches a fresh decision cache to every request, so repeated
// checks inside one request (guard plus service-level checks) resolve once.
func RequestCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithCache(r.Context())))
	})
}

// Guard enforces the route table. A mapped route requires an authenticated
// user and an allowing decision; unmapped routes pass through. Refused
// attempts are audited with the deny reason, successful ones are not: the
// services audit their own outcomes.
func Guard(engine *Engine, table *RouteTable, recorder *audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := table.Lookup(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if userID == uuid.Nil {
				recorder.AccessDenied(ctx, nil, rule.Feature, string(rule.Action), "unauthenticated")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}

			var targetUnit *uuid.UUID
			if rule.UnitParam != "" {
				raw := chi.URLParam(r, rule.UnitParam)
				if raw == "" {
					raw = r.URL.Query().Get(rule.UnitParam)
				}
				if raw != "" {
					id, err := uuid.Parse(raw)
					if err != nil {
						httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid unit id"))
						return
					}
					targetUnit = &id
				}
			}

			decision, err := engine.Authorize(ctx, userID, rule.Feature, rule.Action, targetUnit)
			if err != nil {
				recorder.AccessDenied(ctx, &userID, rule.Feature, string(rule.Action), "authorization_unavailable")
				httputil.WriteError(w, err)
				return
			}
			if !decision.Allowed {
				recorder.AccessDenied(ctx, &userID, rule.Feature, string(rule.Action), string(decision.Reason))
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
