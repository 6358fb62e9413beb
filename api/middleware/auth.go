package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	pkgAuth "github.com/angelmondragon/pricesync-backend/pkg/auth"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

// Auth validates an operator bearer token and seeds the request context with
// the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				message := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					message = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, message))
				return
			}

			operatorID := claims.OperatorID()
			ctx := WithOperator(r.Context(), operatorID, claims.Role)
			if logg != nil {
				ctx = logg.WithActor(ctx, operatorID, claims.Role.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token, token != ""
}
