package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

// CronSecret guards scheduler-facing endpoints with a shared bearer secret.
// An empty secret rejects every request.
func CronSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid cron credentials"))
				return
			}
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithActor(ctx, "cron", "system")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
