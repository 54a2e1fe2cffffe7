// Package access holds the role predicates consulted before every mutating
// lifecycle operation. The predicates are pure: they never touch stores and
// never mutate state, so callers can evaluate them inside store lock scopes.
package access

import "gatekeep/internal/identity/models"

// CanApprove reports whether the user may approve or reject access requests.
func CanApprove(user models.User) bool {
	return user.Role == models.RoleAdmin || user.Role == models.RoleTPO
}

// CanManageAllSessions reports whether the user may terminate sessions they
// do not own and view every session and audit entry.
func CanManageAllSessions(user models.User) bool {
	return user.Role == models.RoleAdmin || user.Role == models.RoleTPO
}

// CanManageUsers reports whether the user may create and list users.
func CanManageUsers(user models.User) bool {
	return user.Role == models.RoleAdmin
}

// CanManageInventory reports whether the user may create or edit
// applications and resources. Deletion additionally requires Admin.
func CanManageInventory(user models.User) bool {
	return user.Role == models.RoleAdmin || user.Role == models.RoleTPO
}
