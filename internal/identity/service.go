package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleettrack/internal/audit"
	"fleettrack/internal/platform/metrics"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/sentinel"
	"fleettrack/pkg/requestcontext"
)

// Service is the identity resolver plus user administration.
type Service struct {
	users       Store
	tokens      *TokenService
	revocations RevocationList
	recorder    *audit.Recorder
	metrics     *metrics.Metrics
}

func NewService(users Store, tokens *TokenService, revocations RevocationList, recorder *audit.Recorder, m *metrics.Metrics) *Service {
	if revocations == nil {
		revocations = NewInMemoryRevocationList()
	}
	return &Service{users: users, tokens: tokens, revocations: revocations, recorder: recorder, metrics: m}
}

// Resolve maps a bearer token to a user id. Invalid, expired, and revoked
// tokens, as well as unknown or deactivated users, all fail with the same
// unauthorized code; callers learn nothing about which check failed. A
// revocation-list outage fails closed.
func (s *Service) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity resolution unavailable")
	}
	if revoked {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
		}
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity resolution unavailable")
	}
	if !user.Active {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return user.ID, nil
}

// Login authenticates an email/password pair and issues an access token.
// Failed attempts are audited without an actor.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.TrimSpace(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, s.failLogin(ctx, email, "unknown email")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "login unavailable")
	}
	if !user.Active {
		return "", nil, s.failLogin(ctx, email, "account deactivated")
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential verification failed")
	}
	if !match {
		return "", nil, s.failLogin(ctx, email, "wrong password")
	}

	token, _, err := s.tokens.Issue(user.ID, requestcontext.Now(ctx))
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "token issuance failed")
	}

	s.recorder.LoginSucceeded(ctx, user.ID, user.Email)
	s.countLogin("success")
	return token, user, nil
}

func (s *Service) failLogin(ctx context.Context, email, reason string) error {
	s.recorder.LoginFailed(ctx, email, reason)
	s.countLogin("failure")
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

// Logout revokes the presented token for its remaining lifetime. Revoking
// an already-invalid token fails like any other use of it.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	remaining := time.Until(claims.ExpiresAt)
	if err := s.revocations.Revoke(ctx, claims.TokenID, remaining); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "logout unavailable")
	}

	s.recorder.Logout(ctx, claims.UserID)
	return nil
}

// -----------------------------------------------------------------------------
// User administration
// -----------------------------------------------------------------------------

func (s *Service) CreateUser(ctx context.Context, email, name, password string) (*User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a valid email is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if len(password) < 8 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "password must be at least 8 characters")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "password hashing failed")
	}

	now := requestcontext.Now(ctx)
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.recorder.EntityCreated(ctx, requestcontext.UserID(ctx), audit.EntityUser, user.ID, user.Email, user.Snapshot())
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// SetUserActive soft-activates or soft-deactivates an account. Deactivation
// ends the user's access at the next token check while keeping audit
// history attributable.
func (s *Service) SetUserActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	if user.Active == active {
		return nil, dErrors.New(dErrors.CodeConflict, "user already in requested state")
	}

	before := user.Snapshot()
	user.Active = active
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, wrapUserErr(err)
	}

	if diff := audit.ComputeDiff(before, user.Snapshot()); diff != nil {
		s.recorder.EntityUpdated(ctx, requestcontext.UserID(ctx), audit.EntityUser, user.ID, user.Email, diff)
	}
	return user, nil
}

// ChangePassword verifies the current password before installing the new
// one. Intended for self-service; administrators reset via a new account.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return wrapUserErr(err)
	}

	match, err := VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential verification failed")
	}
	if !match {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if len(next) < 8 {
		return dErrors.New(dErrors.CodeBadRequest, "password must be at least 8 characters")
	}

	hash, err := HashPassword(next)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "password hashing failed")
	}
	user.PasswordHash = hash
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return wrapUserErr(err)
	}

	s.recorder.EntityUpdated(ctx, id, audit.EntityUser, user.ID, user.Email, audit.Diff{
		"password": {Old: "(redacted)", New: "(redacted)"},
	})
	return nil
}

func (s *Service) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

func wrapUserErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "user store failure")
}
