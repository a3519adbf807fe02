package auth

// Role represents a caller role. Member and manager are organization
// roles; admin is the platform operator role.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleMember, RoleManager, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

// Elevated reports whether the role grants org-wide visibility.
func (r Role) Elevated() bool {
	return r == RoleManager || r == RoleAdmin
}

func roleRank(role Role) int {
	switch role {
	case RoleMember:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
