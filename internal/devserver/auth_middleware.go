package devserver

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/jrsteele09/go-workforce-client/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores the verified access token claims
const ContextKeyClaims ContextKey = "claims"

func claimsFrom(ctx context.Context) *jwt.Claims {
	c, _ := ctx.Value(ContextKeyClaims).(*jwt.Claims)
	return c
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth validates the Bearer access token for audience and stores its
// claims in the request context.
func (s *Server) RequireAuth(audience string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeFail(w, http.StatusUnauthorized, "Missing bearer token", "UNAUTHORIZED")
				return
			}
			claims, err := s.issuer.Verify(raw, audience)
			if err != nil {
				s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("access token rejected")
				writeFail(w, http.StatusUnauthorized, "Invalid or expired token", "UNAUTHORIZED")
				return
			}
			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims)))
		}
	}
}

// RequireRole admits callers holding any of roles. Chain it after
// RequireAuth.
func (s *Server) RequireRole(roles ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil || !hasAnyRole(claims.Roles, roles) {
				writeFail(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}
			next(w, r)
		}
	}
}

func hasAnyRole(held []string, wanted []users.RoleType) bool {
	for _, role := range wanted {
		if slices.Contains(held, string(role)) {
			return true
		}
	}
	return false
}
