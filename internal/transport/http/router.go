// Package http wires the API surface: middleware chain, route table, and
// the handlers for every domain service.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleettrack/internal/audit"
	"fleettrack/internal/authz"
	"fleettrack/internal/feature"
	"fleettrack/internal/fleet"
	"fleettrack/internal/identity"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	"fleettrack/internal/platform/metrics"
	"fleettrack/internal/platform/middleware"
	"fleettrack/internal/rbac"
)

// Feature codes the built-in route table authorizes against.
const (
	FeatureAdministration = "administration"
	FeatureAuditTrail     = "audit"
)

// Services bundles everything the router serves.
type Services struct {
	Identity    *identity.Service
	Org         *org.Service
	Features    *feature.Service
	RBAC        *rbac.Service
	Permissions *permission.Service
	Fleet       *fleet.Service
	Audit       *audit.Recorder
	Engine      *authz.Engine
}

// DefaultRouteTable maps the API routes to their required feature and
// action. Admin surfaces sit behind the administration feature; the audit
// trail is its own read-only feature.
func DefaultRouteTable() *authz.RouteTable {
	admin := func(action permission.Action) authz.Rule {
		return authz.Rule{Feature: FeatureAdministration, Action: action}
	}
	trucks := func(action permission.Action) authz.Rule {
		return authz.Rule{Feature: fleet.FeatureCode, Action: action}
	}

	t := authz.NewRouteTable()

	t.Add("GET", "/api/admin/users", admin(permission.ActionView))
	t.Add("POST", "/api/admin/users", admin(permission.ActionCreate))
	t.Add("GET", "/api/admin/users/{userID}", admin(permission.ActionView))
	t.Add("PUT", "/api/admin/users/{userID}/active", admin(permission.ActionEdit))

	t.Add("GET", "/api/admin/roles", admin(permission.ActionView))
	t.Add("POST", "/api/admin/roles", admin(permission.ActionCreate))
	t.Add("PUT", "/api/admin/roles/{roleID}/active", admin(permission.ActionEdit))
	t.Add("GET", "/api/admin/roles/{roleID}/permissions", admin(permission.ActionView))
	t.Add("PUT", "/api/admin/roles/{roleID}/permissions", admin(permission.ActionEdit))

	t.Add("POST", "/api/admin/grants", admin(permission.ActionCreate))
	t.Add("DELETE", "/api/admin/grants/{grantID}", admin(permission.ActionDelete))

	t.Add("GET", "/api/admin/units", admin(permission.ActionView))
	t.Add("POST", "/api/admin/units", admin(permission.ActionCreate))
	t.Add("PUT", "/api/admin/units/{unitID}", admin(permission.ActionEdit))
	t.Add("PUT", "/api/admin/units/{unitID}/active", admin(permission.ActionEdit))

	t.Add("GET", "/api/admin/features", admin(permission.ActionView))
	t.Add("POST", "/api/admin/features", admin(permission.ActionCreate))
	t.Add("PUT", "/api/admin/features/{featureID}/active", admin(permission.ActionEdit))

	t.Add("GET", "/api/audit", authz.Rule{Feature: FeatureAuditTrail, Action: permission.ActionView})

	t.Add("GET", "/api/trucks", trucks(permission.ActionView))
	t.Add("POST", "/api/trucks", trucks(permission.ActionCreate))
	t.Add("GET", "/api/trucks/export", trucks(permission.ActionView))
	t.Add("POST", "/api/trucks/import", trucks(permission.ActionCreate))
	t.Add("GET", "/api/trucks/{truckID}", trucks(permission.ActionView))
	t.Add("PUT", "/api/trucks/{truckID}", trucks(permission.ActionEdit))
	t.Add("DELETE", "/api/trucks/{truckID}", trucks(permission.ActionDelete))

	return t
}

// NewRouter assembles the full middleware chain and mounts every handler.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, svcs Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger, m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	authHandler := &AuthHandler{identity: svcs.Identity}
	r.Post("/api/auth/login", authHandler.login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(middleware.IdentityResolverFunc(svcs.Identity.Resolve), logger))
		r.Use(authz.RequestCache)
		r.Use(authz.Guard(svcs.Engine, DefaultRouteTable(), svcs.Audit))

		authHandler.Register(r)
		(&AdminHandler{
			identity: svcs.Identity,
			org:      svcs.Org,
			features: svcs.Features,
			rbac:     svcs.RBAC,
			perms:    svcs.Permissions,
		}).Register(r)
		(&FleetHandler{fleet: svcs.Fleet}).Register(r)
		(&AuditHandler{recorder: svcs.Audit}).Register(r)
	})

	return r
}
