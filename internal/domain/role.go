package domain

// Role enumerates community authority levels. The string values are
// wire-visible and must not change.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAuthor     Role = "AUTHOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// roleRanks defines the total authority order once. New roles are
// appended at their rank position; existing ranks are never renumbered.
var roleRanks = map[Role]int{
	RoleUser:       0,
	RoleAuthor:     1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// RoleOrder lists all roles in ascending authority.
var RoleOrder = []Role{RoleUser, RoleAuthor, RoleAdmin, RoleSuperAdmin}

// Rank returns the role's position in the authority order. Unknown
// roles rank below USER.
func (r Role) Rank() (int, bool) {
	rank, ok := roleRanks[r]
	return rank, ok
}

// Valid reports whether the role is a known variant.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}
