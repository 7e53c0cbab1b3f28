package election

import "ballotbox.org/internal/identity"

// Eligible reports whether the identity's capability set satisfies the
// eligibility rule.
func Eligible(rule Eligibility, id identity.Identity) bool {
	switch rule {
	case EligibilityAll:
		return true
	case EligibilityAdmins:
		return id.HasCapability(identity.RoleElectionManager)
	case EligibilityMembers:
		return id.HasCapability(identity.RoleMember)
	}
	return false
}

// MemberVisible reports whether a single election may appear in the
// member-facing catalog for the given identity. Rules apply in order: drafts
// are never visible regardless of role; hidden elections are never visible
// here (administrators see them through the admin listing, not this filter);
// the rest pass on an eligibility match.
func MemberVisible(e Election, id identity.Identity) bool {
	if e.Status == StatusDraft {
		return false
	}
	if e.Hidden {
		return false
	}
	return Eligible(e.Eligibility, id)
}

// VisibleTo filters the catalog down to what a member-facing caller may see.
func VisibleTo(catalog []Election, id identity.Identity) []Election {
	out := make([]Election, 0, len(catalog))
	for _, e := range catalog {
		if MemberVisible(e, id) {
			out = append(out, e)
		}
	}
	return out
}
