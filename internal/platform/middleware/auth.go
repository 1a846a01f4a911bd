package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	id "presente/pkg/domain"
	"presente/pkg/requestcontext"
)

// TokenValidator is the identity-provider boundary: given a bearer
// credential it returns the authenticated subject, their role, and whether
// the account is active. The core trusts this assertion; it never sees
// passwords or token issuance.
type TokenValidator interface {
	ValidateToken(tokenString string) (*IdentityClaims, error)
}

// IdentityClaims is what the identity provider asserts about a caller.
type IdentityClaims struct {
	UserID uuid.UUID
	Role   id.Role
	Active bool
}

// RequireAuth rejects requests without a valid bearer token and injects the
// subject and role into the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err.Error(),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			if !claims.Active {
				logger.WarnContext(ctx, "unauthorized access - inactive account",
					"user_id", claims.UserID,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeForbidden(w, "account is inactive")
				return
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			ctx = requestcontext.WithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree to the listed roles. It assumes RequireAuth
// already ran.
func RequireRole(logger *slog.Logger, roles ...id.Role) func(http.Handler) http.Handler {
	allowed := make(map[id.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if _, ok := allowed[role]; !ok {
				logger.WarnContext(ctx, "forbidden - insufficient role",
					"role", role.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeForbidden(w, "insufficient role for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + description + `"}`))
}

func writeForbidden(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden","message":"` + description + `"}`))
}
