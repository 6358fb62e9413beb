package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

// Upstream ids are kept only when they are short and log-safe; anything
// else is replaced.
var upstreamRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// RequestID propagates or assigns X-Request-Id and tags the request logger
// with it. Cron callers pass their own id so a scheduled run can be traced
// across both sides.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(responses.RequestIDHeader)
			if !upstreamRequestID.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, reqID)

			ctx := withRequestID(r.Context(), reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
