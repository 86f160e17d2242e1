package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnownRole reports whether role is one tokens may be issued for.
func IsKnownRole(role string) bool {
	switch role {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	default:
		return false
	}
}
