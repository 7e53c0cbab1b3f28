package identity

import "strings"

// Role is a closed capability enum extracted from the identity assertion's
// role claims. Unknown claim values are dropped rather than carried around as
// free-form strings.
type Role string

const (
	RoleMember          Role = "member"
	RoleElectionManager Role = "election-manager"
	RoleSuperadmin      Role = "superadmin"
)

// ParseRoles normalizes raw role claims into the closed enum. Absence of any
// recognized role leaves the subject with the implicit member capability.
func ParseRoles(raw []string) []Role {
	seen := make(map[Role]struct{}, len(raw))
	var out []Role
	for _, r := range raw {
		role := Role(strings.TrimSpace(strings.ToLower(r)))
		switch role {
		case RoleMember, RoleElectionManager, RoleSuperadmin:
		default:
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

// Identity is the verified {subject, roles} context handed to every
// downstream component. The subject id is opaque; it is whatever the external
// identity system chose to call this person.
type Identity struct {
	Subject string
	Roles   []Role
}

// HasCapability reports whether the identity satisfies the given capability.
// Superadmin satisfies every election-manager check, and any authenticated
// identity satisfies the member capability.
func (id Identity) HasCapability(r Role) bool {
	switch r {
	case RoleMember:
		return id.Subject != ""
	case RoleElectionManager:
		return id.hasRole(RoleElectionManager) || id.hasRole(RoleSuperadmin)
	case RoleSuperadmin:
		return id.hasRole(RoleSuperadmin)
	}
	return false
}

// IsAdmin reports whether the identity may use the administrative surface.
func (id Identity) IsAdmin() bool {
	return id.HasCapability(RoleElectionManager)
}

func (id Identity) hasRole(r Role) bool {
	for _, have := range id.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// RoleStrings returns the roles as plain strings for audit entries.
func (id Identity) RoleStrings() []string {
	out := make([]string, 0, len(id.Roles))
	for _, r := range id.Roles {
		out = append(out, string(r))
	}
	return out
}
