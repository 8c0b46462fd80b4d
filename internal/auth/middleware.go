package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "edueasy/pkg/domain-errors"
	"edueasy/pkg/platform/httputil"
	"edueasy/pkg/requestcontext"
)

// RequireAdmin validates the Bearer token and requires the admin role. The
// token subject becomes the actor ID for the rest of the request, which is
// how manual assignments end up attributed in the audit trail.
func RequireAdmin(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
				return
			}

			claims, err := tokens.ValidateToken(raw)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "rejected admin request",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, err)
				return
			}

			if claims.Role != RoleAdmin {
				if logger != nil {
					logger.WarnContext(ctx, "admin role missing",
						"subject", claims.Subject,
						"role", claims.Role,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActorID(ctx, claims.Subject)))
		})
	}
}
