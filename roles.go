package session

import (
	"sort"
	"strings"
)

// Role is a coarse grained capability tag granted by the API.
type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleSalesManager     Role = "SALES_MANAGER"
	RoleInventoryManager Role = "INVENTORY_MANAGER"
	RoleAccountant       Role = "ACCOUNTANT"

	// RoleAll addresses a notification to every principal.
	RoleAll Role = "ALL"
	// RoleAny marks a navigation entry visible to any authenticated principal.
	RoleAny Role = "*"
)

// IsValid checks if the role is part of the fixed vocabulary
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSalesManager, RoleInventoryManager, RoleAccountant:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns the role vocabulary
func GetAllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleSalesManager,
		RoleInventoryManager,
		RoleAccountant,
	}
}

// ParseRole normalizes case and whitespace and reports whether the role is known.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// ParseRoles splits a comma separated list. Empty items are skipped.
func ParseRoles(list string) []Role {
	var out []Role
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		role, _ := ParseRole(item)
		out = append(out, role)
	}
	return out
}

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set, dropping empty entries.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether any of roles is in the set.
func (s RoleSet) Intersects(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted for stable output.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RoleStrings converts roles to plain strings.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
