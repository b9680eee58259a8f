package domain

import "slices"

// Role is a caller role carried in the bearer token.
type Role string

const (
	// RoleAdmin manages tenants and feature flags
	RoleAdmin Role = "admin"

	// RoleUser is a regular restaurant staff member
	RoleUser Role = "user"
)

var ValidRoles = []Role{RoleAdmin, RoleUser}

func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles, Role(role))
}

// HasRole checks if a slice of roles contains a specific role
func HasRole(roles []string, role Role) bool {
	return slices.Contains(roles, string(role))
}

// HasAnyRole checks if a slice of roles contains any of the specified roles
func HasAnyRole(roles []string, requiredRoles ...Role) bool {
	for _, required := range requiredRoles {
		if HasRole(roles, required) {
			return true
		}
	}
	return false
}
