package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AnshRaj112/agentdesk-backend/internal/services"
)

type identityKey struct{}

// SessionVerifier authorizes a bearer token.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*services.Identity, error)
}

// ContextWithIdentity attaches id to ctx.
func ContextWithIdentity(ctx context.Context, id *services.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity hydrated by RequireSession.
func IdentityFromContext(ctx context.Context) (*services.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*services.Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// RequireSession rejects requests without a valid session token and makes
// the decoded identity available to the rest of the chain. The identity
// lives only for the request.
func RequireSession(sessions SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, services.ErrUnauthorized.Message)
				return
			}

			id, err := sessions.Verify(r.Context(), token)
			if err != nil {
				if services.KindOf(err) == services.KindInternal {
					slog.ErrorContext(r.Context(), "session check failed", slog.String("error", err.Error()))
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				writeError(w, http.StatusUnauthorized, services.ErrTokenInvalid.Message)
				return
			}

			annotateUser(r.Context(), id.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}
