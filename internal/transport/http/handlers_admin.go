package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleettrack/internal/feature"
	"fleettrack/internal/identity"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	"fleettrack/internal/rbac"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/httputil"
)

// AdminHandler serves the administration surface: users, roles, grants,
// permissions, units, and features.
type AdminHandler struct {
	identity *identity.Service
	org      *org.Service
	features *feature.Service
	rbac     *rbac.Service
	perms    *permission.Service
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Get("/users/{userID}", h.getUser)
		r.Put("/users/{userID}/active", h.setUserActive)

		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Put("/roles/{roleID}/active", h.setRoleActive)
		r.Get("/roles/{roleID}/permissions", h.listPermissions)
		r.Put("/roles/{roleID}/permissions", h.replacePermissions)

		r.Post("/grants", h.createGrant)
		r.Delete("/grants/{grantID}", h.revokeGrant)

		r.Get("/units", h.listUnits)
		r.Post("/units", h.createUnit)
		r.Put("/units/{unitID}", h.renameUnit)
		r.Put("/units/{unitID}/active", h.setUnitActive)

		r.Get("/features", h.listFeatures)
		r.Post("/features", h.createFeature)
		r.Put("/features/{featureID}/active", h.setFeatureActive)
	})
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "malformed id in path")
	}
	return id, nil
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[createUserRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.identity.CreateUser(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *AdminHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.identity.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *AdminHandler) setUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[setActiveRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.identity.SetUserActive(r.Context(), id, req.Active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// -----------------------------------------------------------------------------
// Roles and permissions
// -----------------------------------------------------------------------------

func (h *AdminHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.rbac.ListRoles(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roles)
}

type createRoleRequest struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
	Scope string `json:"scope"`
}

func (h *AdminHandler) createRole(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[createRoleRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := h.rbac.CreateRole(r.Context(), req.Name, req.Level, rbac.ScopeKind(req.Scope))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, role)
}

func (h *AdminHandler) setRoleActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[setActiveRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := h.rbac.SetRoleActive(r.Context(), id, req.Active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, role)
}

func (h *AdminHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.perms.ListByRole(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

type replacePermissionsRequest struct {
	Permissions []permission.Entry `json:"permissions"`
}

func (h *AdminHandler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[replacePermissionsRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	perms, err := h.perms.Replace(r.Context(), id, req.Permissions)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, perms)
}

// -----------------------------------------------------------------------------
// Grants
// -----------------------------------------------------------------------------

type createGrantRequest struct {
	UserID uuid.UUID  `json:"userId"`
	RoleID uuid.UUID  `json:"roleId"`
	UnitID *uuid.UUID `json:"unitId,omitempty"`
}

func (h *AdminHandler) createGrant(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[createGrantRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	grant, err := h.rbac.Grant(r.Context(), req.UserID, req.RoleID, req.UnitID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, grant)
}

func (h *AdminHandler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "grantID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.rbac.Revoke(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -----------------------------------------------------------------------------
// Units
// -----------------------------------------------------------------------------

func (h *AdminHandler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.org.ListUnits(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, units)
}

type createUnitRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (h *AdminHandler) createUnit(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[createUnitRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	unit, err := h.org.CreateUnit(r.Context(), req.Name, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, unit)
}

type renameUnitRequest struct {
	Name string `json:"name"`
}

func (h *AdminHandler) renameUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[renameUnitRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	unit, err := h.org.RenameUnit(r.Context(), id, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

func (h *AdminHandler) setUnitActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[setActiveRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var unit *org.Unit
	if req.Active {
		unit, err = h.org.ReactivateUnit(r.Context(), id)
	} else {
		unit, err = h.org.DeactivateUnit(r.Context(), id)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

// -----------------------------------------------------------------------------
// Features
// -----------------------------------------------------------------------------

func (h *AdminHandler) listFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.features.ListFeatures(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, features)
}

type createFeatureRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *AdminHandler) createFeature(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[createFeatureRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	feat, err := h.features.CreateFeature(r.Context(), req.Code, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, feat)
}

func (h *AdminHandler) setFeatureActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "featureID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[setActiveRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	feat, err := h.features.ToggleFeature(r.Context(), id, req.Active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feat)
}
