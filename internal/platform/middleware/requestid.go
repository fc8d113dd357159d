package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"fleettrack/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID attaches a correlation ID to every request, reusing the inbound
// header when a proxy already assigned one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
