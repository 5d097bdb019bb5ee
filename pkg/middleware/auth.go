package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/httputil"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/logger"
)

type contextKeyType string

const (
	userIDKey    contextKeyType = "user_id"
	principalKey contextKeyType = "principal"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Authenticator resolves a bearer token to the caller. It receives the
// request context so implementations can consult a store on every request.
type Authenticator func(ctx context.Context, token string) (*Principal, error)

// Auth middleware authenticates the bearer token and injects the principal
// into context. Credential failures (errors wrapping apperrors.ErrUnauthorized)
// respond 401 UNAUTHORIZED; anything else is written as a server error.
func Auth(authenticate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, r, "missing or malformed authorization header")
				return
			}

			principal, err := authenticate(r.Context(), token)
			switch {
			case err != nil && !errors.Is(err, apperrors.ErrUnauthorized):
				// Backend failure, not a credential problem.
				httputil.WriteError(w, r, err, slog.Default())
				return
			case err != nil || principal == nil:
				writeAuthError(w, r, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, principal.UserID)
			ctx = context.WithValue(ctx, principalKey, principal)
			ctx = logger.WithUserID(ctx, principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// PrincipalFromContext extracts the authenticated principal from the request
// context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "UNAUTHORIZED",
			Message:   message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
