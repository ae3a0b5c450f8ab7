package auth

import (
	"log/slog"
	"net/http"

	"github.com/shopdesk/backoffice/internal/platform/httpx"
	"github.com/shopdesk/backoffice/internal/shared"
)

// RequireUser admits requests carrying a valid bearer token or a signed-in
// session and stores the user id in the request context.
func RequireUser(tokens *TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if raw := BearerToken(r); raw != "" {
				claims, err := tokens.Parse(raw)
				if err != nil {
					if logger != nil {
						logger.WarnContext(ctx, "rejected bearer token", slog.String("path", r.URL.Path))
					}
					httpx.RespondError(w, &shared.Failure{Cause: shared.KindAuth, Message: "Invalid or expired token", Err: err})
					return
				}
				next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(ctx, claims.Subject)))
				return
			}
			if sess := shared.SessionFromContext(ctx); sess != nil && sess.User() != "" {
				next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(ctx, sess.User())))
				return
			}
			httpx.RespondError(w, &shared.Failure{Cause: shared.KindAuth, Message: "Sign in required", Err: shared.ErrUnauthorized})
		})
	}
}
