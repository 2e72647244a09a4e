package auth

import "slices"

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermDirectoryRead    Permission = "directory:read"
	PermDirectoryRefresh Permission = "directory:refresh"
	PermCommandSend      Permission = "command:send"
	PermDeviceProbe      Permission = "device:probe"
	PermOutcomeWatch     Permission = "outcome:watch"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermDirectoryRead,
		PermOutcomeWatch,
	},
	RoleOperator: {
		PermDirectoryRead,
		PermOutcomeWatch,
		PermCommandSend,
		PermDeviceProbe,
	},
	RoleAdmin: {
		PermDirectoryRead,
		PermOutcomeWatch,
		PermCommandSend,
		PermDeviceProbe,
		PermDirectoryRefresh,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return slices.Clone(perms)
}
