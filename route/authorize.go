package route

import "github.com/MrEthical07/authclient/permission"

// CanEnter reports whether a session with role may enter a view restricted to required.
// A nil required set places no restriction. hasRole is false for an unauthenticated
// session or one whose token carries an unknown role.
func CanEnter(required *permission.RoleSet, role permission.Role, hasRole bool) bool {
	if required == nil {
		return true
	}
	if !hasRole {
		return false
	}
	return required.Contains(role)
}
