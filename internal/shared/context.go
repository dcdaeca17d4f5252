package shared

import "context"

// Caller roles resolved by the gateway before a request reaches this service.
const (
	// RoleCC is the cross-club administrative role with full approval authority.
	RoleCC = "cc"
	// RoleSLO is the second-stage certificate approver role.
	RoleSLO = "slo"
	// RoleClub marks a club acting on its own membership records.
	RoleClub = "club"
	// RolePublic is an unauthenticated caller.
	RolePublic = "public"
)

// Identity is the externally verified caller attached to each request.
// A zero Identity means the caller is anonymous.
type Identity struct {
	UID  string
	Role string
}

// Anonymous reports whether no identity was attached.
func (id Identity) Anonymous() bool { return id.Role == "" || id.Role == RolePublic }

// IsCC reports whether the caller holds the administrative role.
func (id Identity) IsCC() bool { return id.Role == RoleCC }

// OwnsClub reports whether the caller is the club identified by cid.
// Club identity is asserted by the gateway token, never by request input.
func (id Identity) OwnsClub(cid string) bool {
	return id.Role == RoleClub && id.UID == cid
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityContextKey{}).(Identity)
	return id
}
