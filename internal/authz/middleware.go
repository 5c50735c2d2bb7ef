// Package authz guards HTTP routes: it resolves bearer tokens into principals
// and applies role and ownership policies on top of them.
package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atlas-auth/atlas-auth/internal/accounts"
	"github.com/atlas-auth/atlas-auth/internal/platform/httpx"
	"github.com/atlas-auth/atlas-auth/internal/shared"
	"github.com/atlas-auth/atlas-auth/internal/token"
)

// TokenVerifier checks a raw token and returns the identity it carries.
type TokenVerifier interface {
	Verify(raw string) (token.Identity, error)
}

// UserSource resolves a user identifier to the stored account.
type UserSource interface {
	FindByID(ctx context.Context, id string) (*accounts.User, error)
}

// Middleware wires authentication and authorization helpers for HTTP routes.
type Middleware struct {
	Tokens TokenVerifier
	Users  UserSource
	Logger *slog.Logger
	// AdminRole is the role granted unconditional access by ownership checks.
	// Zero value falls back to shared.RoleAdmin.
	AdminRole shared.Role
}

// Authenticate verifies the bearer token, resolves the user and attaches a
// principal to the request context. Tokens issued before the account's last
// password change are rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		identity, err := m.Tokens.Verify(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpired):
				httpx.Fail(w, http.StatusUnauthorized, "Token expired, please login again")
			case errors.Is(err, token.ErrSignatureInvalid), errors.Is(err, token.ErrMalformed):
				httpx.Fail(w, http.StatusUnauthorized, "Invalid token")
			default:
				httpx.Fail(w, http.StatusUnauthorized, "Authentication failed")
			}
			return
		}

		user, err := m.Users.FindByID(r.Context(), identity.UserID)
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				httpx.Fail(w, http.StatusUnauthorized, "User no longer exists")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve principal", slog.Any("error", err))
			}
			httpx.Fail(w, http.StatusInternalServerError, "Something went wrong")
			return
		}

		// Token issued-at has second precision; compare at the same grain so
		// a change and a fresh login within one second stay consistent.
		if user.PasswordChangedAt != nil {
			changed := user.PasswordChangedAt.Truncate(time.Second)
			if changed.After(identity.IssuedAt) {
				httpx.Fail(w, http.StatusUnauthorized, "Password recently changed, please login again")
				return
			}
		}

		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{ID: user.ID, Role: user.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
