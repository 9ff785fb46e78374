package auth

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned on signup
	RoleUser UserRole = "user"
	// RoleAdmin gates administrative operations. Elevation happens through
	// the administrative collaborator, never through this package.
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the two predefined roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdminRole reports whether the role grants administrative access
func IsAdminRole(r UserRole) bool {
	return r == RoleAdmin
}

// ParseRole safely parses a string into a UserRole
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
