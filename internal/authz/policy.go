package authz

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-auth/atlas-auth/internal/platform/httpx"
	"github.com/atlas-auth/atlas-auth/internal/shared"
)

// RequireRoles allows the request only when the principal's role is in the
// permitted set. It must run after Authenticate.
func (m Middleware) RequireRoles(roles ...shared.Role) func(http.Handler) http.Handler {
	permitted := make(map[shared.Role]struct{}, len(roles))
	for _, role := range roles {
		if role.Valid() {
			permitted[role] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, allowed := permitted[principal.Role]; !allowed {
				httpx.Fail(w, http.StatusForbidden, "Permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner allows the administrative role unconditionally; other
// principals only when their identifier matches the named URL parameter. It
// must run after Authenticate.
func (m Middleware) RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if principal.Role != m.adminRole() && principal.ID != chi.URLParam(r, param) {
				httpx.Fail(w, http.StatusForbidden, "Permission denied for this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) adminRole() shared.Role {
	if m.AdminRole.Valid() {
		return m.AdminRole
	}
	return shared.RoleAdmin
}
