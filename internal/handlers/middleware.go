package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/linusbett/MedTrack-Backend/internal/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// requireAuth verifies the session token once and injects the typed identity
// into the request context. The token is taken from the Authorization header
// or, for browser clients, from the Authorization cookie.
func (h *Handlers) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if cookie, err := r.Cookie("Authorization"); err == nil {
				token = bearerToken(cookie.Value)
			}
		}
		if token == "" {
			h.writeError(w, r, http.StatusUnauthorized, "Unauthorized: no token provided")
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			h.writeError(w, r, http.StatusUnauthorized, "Unauthorized: invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

func bearerToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if after, found := strings.CutPrefix(value, "Bearer "); found {
		return strings.TrimSpace(after)
	}
	return value
}
