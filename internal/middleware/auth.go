package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/mapveto/internal/auth"
)

type claimsKey struct{}

// Authenticate attaches the caller's claims to the request context when a valid token is present.
// Requests without one continue as anonymous spectators; an invalid token is rejected.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.TokenFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		c, err := auth.AuthenticateJWT(tok)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

// RequireAdmin rejects callers without the admin claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !c.Admin {
			writeAuthError(w, http.StatusForbidden, "admin required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims stores c on ctx.
func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims Authenticate attached, if any.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
