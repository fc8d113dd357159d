package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/httputil"
	"fleettrack/pkg/requestcontext"
)

// IdentityResolver resolves a bearer token into a stable user identity.
// Implementations fail with CodeUnauthorized for bad, expired, revoked, or
// unknown-user tokens.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
}

// IdentityResolverFunc adapts a function to the IdentityResolver interface.
type IdentityResolverFunc func(ctx context.Context, token string) (uuid.UUID, error)

func (f IdentityResolverFunc) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	return f(ctx, token)
}

// RequireAuth authenticates the request with the Authorization bearer token
// and injects the resolved user ID into the request context.
func RequireAuth(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			userID, err := resolver.Resolve(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - token rejected",
					"request_id", requestID,
					"error", err,
				)
				// Resolver failures that are not authentication verdicts are
				// infrastructure problems; keep them distinguishable for clients.
				if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "authentication unavailable"))
					return
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}
