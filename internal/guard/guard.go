// Package guard holds the shared identity model for the data-erasure
// safety subsystem. Token issuance and session handling live upstream;
// this package only answers "which capabilities does this principal carry".
package guard

type Role string

const (
	// RoleInitiator starts clear requests and drives the first
	// confirmation sequence.
	RoleInitiator Role = "initiator"

	// RoleAuthorizer independently drives the second confirmation
	// sequence and may reject a request outright.
	RoleAuthorizer Role = "authorizer"
)

// Principal is the already-authenticated identity attached to a call.
type Principal struct {
	ID         string
	Role       Role
	SourceAddr string // caller address, recorded in the audit log
}

func (p Principal) CanInitiate() bool { return p.Role == RoleInitiator }

func (p Principal) CanAuthorize() bool { return p.Role == RoleAuthorizer }

// CanRestore reports whether the principal may trigger a restore.
// Restore requires initiator-or-higher; the authorizer role counts as
// higher.
func (p Principal) CanRestore() bool {
	return p.Role == RoleInitiator || p.Role == RoleAuthorizer
}
