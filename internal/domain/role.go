package domain

import "strings"

// Role is the closed set of roles a profile may carry.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleFinance Role = "finance"
	RoleStock   Role = "stock"
)

// DefaultRole is assigned whenever no usable role is stored.
const DefaultRole = RoleUser

var knownRoles = map[Role]struct{}{
	RoleUser:    {},
	RoleAdmin:   {},
	RoleManager: {},
	RoleFinance: {},
	RoleStock:   {},
}

// ResolveRole maps a stored role string onto the enumeration. Empty and
// unknown values resolve to DefaultRole.
func ResolveRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownRoles[role]; ok {
		return role
	}
	return DefaultRole
}

// Valid reports whether r is part of the enumeration.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}
