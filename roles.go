package academy

import (
	"sort"
	"strings"
)

// Role is the closed set of platform roles.
type Role string

const (
	// RoleSuperAdmin manages administrators and everything below
	RoleSuperAdmin Role = "superAdmin"
	// RoleAdmin manages the catalog and learners
	RoleAdmin Role = "admin"
	// RoleUser is a learner
	RoleUser Role = "user"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdministrative reports whether r sees the administrative catalog view.
func (r Role) IsAdministrative() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanManage reports whether r may create or change identities holding target.
// Only a super admin may hand out administrative roles.
func (r Role) CanManage(target Role) bool {
	switch r {
	case RoleSuperAdmin:
		return target.IsValid()
	case RoleAdmin:
		return target == RoleUser
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles, most privileged first
func GetAllRoles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleAdmin,
		RoleUser,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.TrimSpace(roleStr))
	return role, role.IsValid()
}

// RoleSet is an allow list of roles. An empty set allows nothing.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set. Invalid roles are kept but never match, so a
// misspelled role narrows the set instead of widening it.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// AnyRole allows every authenticated identity.
func AnyRole() RoleSet {
	return NewRoleSet(GetAllRoles()...)
}

// Administrators is the set of roles that manage the catalog.
func Administrators() RoleSet {
	return NewRoleSet(RoleSuperAdmin, RoleAdmin)
}

// Allows reports whether r passes the set.
func (s RoleSet) Allows(r Role) bool {
	if !r.IsValid() {
		return false
	}
	_, ok := s[r]
	return ok
}

// Strings returns the roles in the set in lexical order.
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}
