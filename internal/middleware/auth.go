package middleware

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/nishant/auction-app/backend/internal/apperrors"
)

// contextKey is an unexported type for context keys so no other package can
// collide with the values this middleware stores.
type contextKey string

const (
	userIDKey contextKey = "userID"
	tokenKey  contextKey = "token"
)

// TokenVerifier checks a bearer token and returns the user id it encodes.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Blacklist reports whether a token has been invalidated by a logout.
type Blacklist interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// RequireAuth gates protected routes. A missing or blacklisted token is
// rejected with 401 before the signature is ever checked; a present but
// invalid token gets 403. On success the user id and the raw token are
// stored in the request context.
func RequireAuth(tokens TokenVerifier, blacklist Blacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apperrors.WriteJSON(w, http.StatusUnauthorized,
					map[string]string{"message": "Unauthorized: No token provided"})
				return
			}

			if blacklist != nil {
				revoked, err := blacklist.Contains(r.Context(), token)
				if err != nil {
					// Best-effort check: a blacklist outage must not lock
					// everyone out.
					log.WithField("error", err.Error()).Warn("token blacklist unavailable")
				} else if revoked {
					apperrors.WriteJSON(w, http.StatusUnauthorized,
						map[string]string{"message": "Invalid token. Please log in again."})
					return
				}
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				apperrors.WriteJSON(w, http.StatusForbidden,
					map[string]string{"message": "Invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user's id, or ("", false) on
// an unauthenticated request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// TokenFromContext returns the raw bearer token the request carried.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
