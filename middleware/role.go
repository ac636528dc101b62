package middleware

import (
	"net/http"

	"github.com/MrEthical07/authclient/permission"
)

// RoleSource reports the role of the current session.
type RoleSource interface {
	Role() (permission.Role, bool)
}

// SessionSource reports whether a session exists.
type SessionSource interface {
	IsAuthenticated() bool
}

// RequireRole admits sessions whose role is one of roles and redirects the rest. With no
// roles, any session carrying a known role is admitted.
func RequireRole(src RoleSource, redirect string, roles ...permission.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := src.Role()
			if !ok || (len(roles) > 0 && !contains(roles, role)) {
				http.Redirect(w, r, redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PublicOnly redirects authenticated sessions away from the wrapped view.
func PublicOnly(src SessionSource, redirect string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src.IsAuthenticated() {
				http.Redirect(w, r, redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contains(roles []permission.Role, role permission.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
