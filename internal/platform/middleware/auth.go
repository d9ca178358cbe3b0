package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

// TokenValidator validates bearer tokens and returns the identity they carry.
type TokenValidator interface {
	Validate(tokenString string) (*TokenIdentity, error)
}

// TokenIdentity is the authenticated identity extracted from a token.
type TokenIdentity struct {
	OrgID  id.OrgID
	UserID id.UserID
	Role   string
}

// RequireAuth rejects requests without a valid bearer token and injects the
// organization, user, and role into the request context. Tenant isolation
// starts here: services read the organization only from this context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			identity, err := validator.Validate(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized request",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx := requestcontext.WithOrgID(r.Context(), identity.OrgID)
			ctx = requestcontext.WithUserID(ctx, identity.UserID)
			ctx = requestcontext.WithRole(ctx, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree behind a firm role. Used for partner-only
// actions such as statute override validation.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestcontext.Role(r.Context()) != role {
				logger.WarnContext(r.Context(), "role denied",
					"request_id", requestcontext.RequestID(r.Context()),
					"required_role", role,
					"role", requestcontext.Role(r.Context()),
				)
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeForbidden, "requires %s role", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
