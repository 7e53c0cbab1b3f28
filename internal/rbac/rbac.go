// Package rbac gates administrative operations on the capabilities carried by
// the verified identity. Each operation declares its required roles up front;
// handlers never compare role strings ad hoc.
package rbac

import (
	"context"
	"errors"
	"strings"

	"ballotbox.org/internal/audit"
	"ballotbox.org/internal/identity"
)

// ErrAuthorization indicates the capability check failed.
var ErrAuthorization = errors.New("authorization failed")

// Operation names an administrative action and the capabilities that may
// perform it. The match mode is "any of"; superadmin implicitly satisfies any
// election-manager requirement via identity.HasCapability.
type Operation struct {
	Name  string
	AnyOf []identity.Role
}

var (
	manager    = []identity.Role{identity.RoleElectionManager}
	superadmin = []identity.Role{identity.RoleSuperadmin}
)

var (
	OpElectionList    = Operation{Name: "admin.election.list", AnyOf: manager}
	OpElectionGet     = Operation{Name: "admin.election.get", AnyOf: manager}
	OpElectionCreate  = Operation{Name: "admin.election.create", AnyOf: manager}
	OpElectionUpdate  = Operation{Name: "admin.election.update", AnyOf: manager}
	OpElectionPublish = Operation{Name: "admin.election.publish", AnyOf: manager}
	OpElectionPause   = Operation{Name: "admin.election.pause", AnyOf: manager}
	OpElectionResume  = Operation{Name: "admin.election.resume", AnyOf: manager}
	OpElectionClose   = Operation{Name: "admin.election.close", AnyOf: manager}
	OpElectionArchive = Operation{Name: "admin.election.archive", AnyOf: manager}
	OpElectionHide    = Operation{Name: "admin.election.hide", AnyOf: manager}
	OpElectionUnhide  = Operation{Name: "admin.election.unhide", AnyOf: manager}
	OpElectionResults = Operation{Name: "admin.election.results", AnyOf: manager}

	// Hard delete is irreversible and is the only operation reserved to
	// superadmin exclusively.
	OpElectionDelete = Operation{Name: "admin.election.delete", AnyOf: superadmin}
)

// Authorize evaluates the context's verified identity against the operation.
// It fails closed and writes an access_denied audit entry on mismatch.
func Authorize(ctx context.Context, op Operation) error {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return ErrAuthorization
	}
	for _, role := range op.AnyOf {
		if id.HasCapability(role) {
			return nil
		}
	}
	_ = audit.Log(ctx, audit.Entry{
		Action:      audit.ActionAccessDenied,
		PerformedBy: id.Subject,
		Details: map[string]string{
			"operation":      op.Name,
			"granted_roles":  strings.Join(id.RoleStrings(), ","),
			"required_roles": joinRoles(op.AnyOf),
		},
	})
	return ErrAuthorization
}

func joinRoles(roles []identity.Role) string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return strings.Join(out, ",")
}
