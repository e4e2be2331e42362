package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow the
// values stored under it.
type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth guards protected routes.
//
// The token comes from "Authorization: Bearer <token>". A request without
// one gets 401; a token that fails validation (bad signature, expired,
// wrong issuer) gets 403. On success the claims are stored in the request
// context for UserIDFromContext / ClaimsFromContext.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided.")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "forbidden", "Invalid token.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a copy of ctx carrying claims. Exposed for handler
// tests that bypass the middleware.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the authenticated caller's claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext returns the authenticated caller's user id, or
// ("", false) on an unauthenticated request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.UserID == "" {
		return "", false
	}
	return c.UserID, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeAuthError writes the same {"error","message"} body the handlers use.
// The body is fixed text, so it is written directly.
func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}` + "\n"))
}
