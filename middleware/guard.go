package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessiongate"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*sessiongate.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessiongate.AuthResult)
	return res, ok
}

// WithAuthResult stores res the way Guard does. Handlers under test use it
// to skip the gate.
func WithAuthResult(ctx context.Context, res *sessiongate.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard runs Engine.Validate on the bearer token. A missing or bad token is
// 401, a disabled account 403.
func Guard(engine *sessiongate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, sessiongate.ErrUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, sessiongate.ErrUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireAttributes checks the guarded caller against attrs. It must run
// after Guard. A denial is 403 with the generic message; the missing
// attributes go to the engine's audit trail only.
func RequireAttributes(engine *sessiongate.Engine, attrs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(attrs) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok || engine == nil {
				WriteError(w, sessiongate.ErrUnauthorized)
				return
			}
			if _, err := engine.Authorize(r.Context(), res.UserID, attrs...); err != nil {
				WriteError(w, sessiongate.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
