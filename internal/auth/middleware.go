package auth

import (
	"context"
	"net/http"
	"strings"
)

// SessionCookie is the cookie the identity provider's frontend SDK sets.
const SessionCookie = "__session"

// Package-private key type so no other package can read or shadow the value.
type contextKey string

const identityKey contextKey = "identityID"

// RequireAuth rejects requests without a valid session token with 401 and
// stores the token subject in the request context otherwise.
//
// A nil TokenService disables the gate: every request passes through with no
// identity in its context. server.New logs a warning when it wires that up.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identityID, err := extractIdentity(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid session required"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identityID)))
		})
	}
}

// WithIdentity returns a context carrying identityID. Handlers never call it;
// it exists for RequireAuth and for tests that drive services directly.
func WithIdentity(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, identityKey, identityID)
}

// IdentityFromContext returns the external identity id of the caller.
// ok is false for unauthenticated requests (or when auth is disabled).
func IdentityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok && id != ""
}

// extractIdentity prefers the Authorization header and falls back to the
// session cookie.
func extractIdentity(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, found := strings.CutPrefix(h, "Bearer ")
		if found && token != "" {
			return tokens.Validate(strings.TrimSpace(token))
		}
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
