package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fleettrack/internal/identity"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/httputil"
	"fleettrack/pkg/requestcontext"
)

// AuthHandler serves login, logout, and the current-user endpoint.
type AuthHandler struct {
	identity *identity.Service
}

// Register mounts the authenticated auth endpoints. Login is mounted
// separately, outside the auth middleware.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/api/auth/logout", h.logout)
	r.Get("/api/auth/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[loginRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	token, user, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}
	if err := h.identity.Logout(r.Context(), token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.GetUser(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func bearerToken(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}
