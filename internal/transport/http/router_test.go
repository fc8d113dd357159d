package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleettrack/internal/audit"
	"fleettrack/internal/authz"
	"fleettrack/internal/feature"
	"fleettrack/internal/fleet"
	"fleettrack/internal/identity"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	"fleettrack/internal/rbac"
	transporthttp "fleettrack/internal/transport/http"
	"fleettrack/pkg/requestcontext"
)

type env struct {
	server *httptest.Server

	adminEmail    string
	adminPassword string
}

// newEnv stands up the full router over in-memory stores with one seeded
// administrator, the way the server boots in dev mode.
func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore, logger)

	users := identity.NewInMemoryStore()
	tokens := identity.NewTokenService([]byte("router-test-key"), "fleettrack-test", time.Hour)
	identitySvc := identity.NewService(users, tokens, nil, recorder, nil)

	units := org.NewInMemoryStore()
	roles := rbac.NewInMemoryRoleStore()
	grants := rbac.NewInMemoryGrantStore()
	features := feature.NewInMemoryStore()
	perms := permission.NewInMemoryStore()
	trucks := fleet.NewInMemoryStore()

	orgSvc := org.NewService(units, recorder)
	rbacSvc := rbac.NewService(roles, grants, units, recorder, nil)
	permSvc := permission.NewService(perms, features, roles, recorder, nil)
	featSvc := feature.NewService(features, recorder)
	engine := authz.NewEngine(rbacSvc, featSvc, permSvc, nil)
	fleetSvc := fleet.NewService(trucks, units, engine, rbacSvc, recorder)

	seedCtx := requestcontext.WithUserID(context.Background(), uuid.New())
	for _, code := range []string{fleet.FeatureCode, transporthttp.FeatureAdministration, transporthttp.FeatureAuditTrail} {
		_, err := featSvc.CreateFeature(seedCtx, code, code)
		require.NoError(t, err)
	}
	adminRole, err := rbacSvc.CreateRole(seedCtx, "Administrator", rbac.AdminLevel, rbac.ScopeGlobal)
	require.NoError(t, err)

	e := &env{adminEmail: "admin@example.com", adminPassword: "admin password"}
	adminUser, err := identitySvc.CreateUser(seedCtx, e.adminEmail, "Admin", e.adminPassword)
	require.NoError(t, err)
	_, err = rbacSvc.Grant(seedCtx, adminUser.ID, adminRole.ID, nil)
	require.NoError(t, err)

	router := transporthttp.NewRouter(logger, nil, transporthttp.Services{
		Identity:    identitySvc,
		Org:         orgSvc,
		Features:    featSvc,
		RBAC:        rbacSvc,
		Permissions: permSvc,
		Fleet:       fleetSvc,
		Audit:       recorder,
		Engine:      engine,
	})
	e.server = httptest.NewServer(router)
	t.Cleanup(e.server.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, token string, body any) *gohttp.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := gohttp.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *gohttp.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *env) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	return decodeBody[struct {
		Token string `json:"token"`
	}](t, resp).Token
}

func TestLoginFlow(t *testing.T) {
	e := newEnv(t)

	t.Run("bad credentials", func(t *testing.T) {
		resp := e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": e.adminEmail, "password": "nope"})
		assert.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)
	})

	token := e.login(t, e.adminEmail, e.adminPassword)

	t.Run("me", func(t *testing.T) {
		resp := e.do(t, "GET", "/api/auth/me", token, nil)
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)
		me := decodeBody[map[string]any](t, resp)
		assert.Equal(t, e.adminEmail, me["email"])
	})

	t.Run("logout invalidates the token", func(t *testing.T) {
		resp := e.do(t, "POST", "/api/auth/logout", token, nil)
		require.Equal(t, gohttp.StatusNoContent, resp.StatusCode)

		resp = e.do(t, "GET", "/api/auth/me", token, nil)
		assert.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRequestsWithoutToken(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, "GET", "/api/trucks", "", nil)
	assert.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
}

func TestAdminSurface(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, e.adminEmail, e.adminPassword)

	resp := e.do(t, "POST", "/api/admin/units", token, map[string]string{"name": "North", "code": "north"})
	require.Equal(t, gohttp.StatusCreated, resp.StatusCode)
	unit := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "NORTH", unit["code"])

	resp = e.do(t, "GET", "/api/admin/units", token, nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)

	t.Run("duplicate unit code conflicts", func(t *testing.T) {
		resp := e.do(t, "POST", "/api/admin/units", token, map[string]string{"name": "North 2", "code": "NORTH"})
		assert.Equal(t, gohttp.StatusConflict, resp.StatusCode)
	})
}

func TestScopedAccessOverHTTP(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, e.adminEmail, e.adminPassword)

	// Admin provisions a unit, a scoped manager role, and a manager user.
	resp := e.do(t, "POST", "/api/admin/units", admin, map[string]string{"name": "North", "code": "NORTH"})
	require.Equal(t, gohttp.StatusCreated, resp.StatusCode)
	unitID := decodeBody[struct {
		ID uuid.UUID `json:"id"`
	}](t, resp).ID

	resp = e.do(t, "POST", "/api/admin/roles", admin, map[string]any{"name": "Fleet Manager", "level": 2, "scope": "unit"})
	require.Equal(t, gohttp.StatusCreated, resp.StatusCode)
	roleID := decodeBody[struct {
		ID uuid.UUID `json:"id"`
	}](t, resp).ID

	resp = e.do(t, "GET", "/api/admin/features", admin, nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	var trucksFeature uuid.UUID
	for _, f := range decodeBody[[]map[string]any](t, resp) {
		if f["code"] == "trucks" {
			trucksFeature = uuid.MustParse(f["id"].(string))
		}
	}
	require.NotEqual(t, uuid.Nil, trucksFeature)

	resp = e.do(t, "PUT", "/api/admin/roles/"+roleID.String()+"/permissions", admin, map[string]any{
		"permissions": []map[string]any{
			{"featureId": trucksFeature, "actions": []string{"view", "create"}},
		},
	})
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)

	resp = e.do(t, "POST", "/api/admin/users", admin, map[string]string{
		"email": "manager@example.com", "name": "Manager", "password": "manager password",
	})
	require.Equal(t, gohttp.StatusCreated, resp.StatusCode)
	managerID := decodeBody[struct {
		ID uuid.UUID `json:"id"`
	}](t, resp).ID

	resp = e.do(t, "POST", "/api/admin/grants", admin, map[string]any{
		"userId": managerID, "roleId": roleID, "unitId": unitID,
	})
	require.Equal(t, gohttp.StatusCreated, resp.StatusCode)

	manager := e.login(t, "manager@example.com", "manager password")

	t.Run("manager creates a truck in scope", func(t *testing.T) {
		resp := e.do(t, "POST", "/api/trucks", manager, map[string]any{
			"unitId": unitID, "plate": "AB-123", "make": "Volvo", "model": "FH16",
			"trackerState": "functional", "insured": "yes",
		})
		assert.Equal(t, gohttp.StatusCreated, resp.StatusCode)
	})

	t.Run("manager cannot reach the admin surface", func(t *testing.T) {
		resp := e.do(t, "GET", "/api/admin/users", manager, nil)
		assert.Equal(t, gohttp.StatusForbidden, resp.StatusCode)
	})

	t.Run("manager cannot delete trucks", func(t *testing.T) {
		resp := e.do(t, "GET", "/api/trucks", manager, nil)
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)
		trucks := decodeBody[[]map[string]any](t, resp)
		require.Len(t, trucks, 1)

		resp = e.do(t, "DELETE", "/api/trucks/"+trucks[0]["id"].(string), manager, nil)
		assert.Equal(t, gohttp.StatusForbidden, resp.StatusCode)
	})

	t.Run("denied attempts land in the audit trail", func(t *testing.T) {
		resp := e.do(t, "GET", "/api/audit?action=access_denied", admin, nil)
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)
		entries := decodeBody[[]map[string]any](t, resp)
		require.NotEmpty(t, entries)
	})

	t.Run("audit trail is off limits for the manager", func(t *testing.T) {
		resp := e.do(t, "GET", "/api/audit", manager, nil)
		assert.Equal(t, gohttp.StatusForbidden, resp.StatusCode)
	})

	t.Run("export returns csv", func(t *testing.T) {
		resp := e.do(t, "GET", "/api/trucks/export", manager, nil)
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	})
}

func TestFeatureKillSwitchOverHTTP(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, e.adminEmail, e.adminPassword)

	resp := e.do(t, "GET", "/api/admin/features", admin, nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	var trucksFeature string
	for _, f := range decodeBody[[]map[string]any](t, resp) {
		if f["code"] == "trucks" {
			trucksFeature = f["id"].(string)
		}
	}
	require.NotEmpty(t, trucksFeature)

	resp = e.do(t, "PUT", "/api/admin/features/"+trucksFeature+"/active", admin, map[string]bool{"active": false})
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)

	// Admins bypass the switch; everyone else is refused.
	resp = e.do(t, "GET", "/api/trucks", admin, nil)
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
}
