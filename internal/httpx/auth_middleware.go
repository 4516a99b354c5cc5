package httpx

import (
	"context"
	"net/http"
	"strings"
)

// Authenticator resolves request credentials into a Principal.
type Authenticator interface {
	AuthenticateBasic(ctx context.Context, username, password string) (Principal, error)
	AuthenticateToken(ctx context.Context, token string) (Principal, error)
}

const authChallenge = `Basic realm="bookinventory", Bearer`

// AuthMiddleware accepts either a Bearer token or HTTP Basic credentials.
// Requests with neither, or with credentials that do not check out, get a 401.
func AuthMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				p   Principal
				err error
			)
			authHeader := r.Header.Get("Authorization")
			switch {
			case strings.HasPrefix(authHeader, "Bearer "):
				p, err = authn.AuthenticateToken(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			case strings.HasPrefix(authHeader, "Basic "):
				user, pass, ok := r.BasicAuth()
				if !ok {
					unauthorized(w, r)
					return
				}
				p, err = authn.AuthenticateBasic(r.Context(), user, pass)
			default:
				unauthorized(w, r)
				return
			}
			if err != nil {
				unauthorized(w, r)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers lacking role with a 403.
// It must run after AuthMiddleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r)
			if !ok {
				unauthorized(w, r)
				return
			}
			if !p.HasRole(role) {
				JSONError(w, r, http.StatusForbidden, CodeForbidden, "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", authChallenge)
	JSONError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required", nil)
}
