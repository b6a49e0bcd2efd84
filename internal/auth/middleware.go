package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// A package-private key type means only this package can read or write the
// userID value — a plain string key could be shadowed by any other package.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces authentication on protected routes.
//
// It reads the access token from the "Authorization: Bearer <token>" header,
// verifies it, and stores the userID in the request context. Missing,
// invalid, expired, or refresh-typed tokens all get 401 — a refresh token is
// NOT an access credential even though it is a valid JWT signed by us.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) if the request carried no valid access token.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrTokenInvalid
	}

	userID, tokenType, err := tokens.Decode(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", err
	}
	if tokenType == TokenTypeRefresh {
		return "", ErrTokenInvalid
	}

	return userID, nil
}
