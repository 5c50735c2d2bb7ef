package authz_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/atlas-auth/atlas-auth/internal/authz"
	"github.com/atlas-auth/atlas-auth/internal/shared"
)

func doWithPrincipal(t *testing.T, router chi.Router, target string, principal *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *principal))
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestRequireRoles(t *testing.T) {
	mw := authz.Middleware{}
	router := chi.NewRouter()
	router.With(mw.RequireRoles(shared.RoleAdmin)).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	res := doWithPrincipal(t, router, "/admin", &shared.Principal{ID: "u1", Role: shared.RoleAdmin})
	require.Equal(t, http.StatusOK, res.Code)

	res = doWithPrincipal(t, router, "/admin", &shared.Principal{ID: "u2", Role: shared.RoleUser})
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "Permission denied")

	res = doWithPrincipal(t, router, "/admin", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireRolesOrderIndependent(t *testing.T) {
	mw := authz.Middleware{}
	for _, roles := range [][]shared.Role{
		{shared.RoleUser, shared.RoleAdmin},
		{shared.RoleAdmin, shared.RoleUser},
	} {
		router := chi.NewRouter()
		router.With(mw.RequireRoles(roles...)).Get("/any", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		res := doWithPrincipal(t, router, "/any", &shared.Principal{ID: "u1", Role: shared.RoleUser})
		require.Equal(t, http.StatusOK, res.Code)
	}
}

func TestRequireOwner(t *testing.T) {
	mw := authz.Middleware{AdminRole: shared.RoleAdmin}
	router := chi.NewRouter()
	router.With(mw.RequireOwner("userID")).Get("/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Owner reaches their own resource.
	res := doWithPrincipal(t, router, "/users/u1", &shared.Principal{ID: "u1", Role: shared.RoleUser})
	require.Equal(t, http.StatusOK, res.Code)

	// Non-owner is rejected.
	res = doWithPrincipal(t, router, "/users/u1", &shared.Principal{ID: "u2", Role: shared.RoleUser})
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "Permission denied for this resource")

	// Admin bypasses ownership.
	res = doWithPrincipal(t, router, "/users/u1", &shared.Principal{ID: "u3", Role: shared.RoleAdmin})
	require.Equal(t, http.StatusOK, res.Code)

	// No principal at all.
	res = doWithPrincipal(t, router, "/users/u1", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
