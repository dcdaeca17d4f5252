package members

import "github.com/clubs-council/members-service/internal/shared"

// CanViewFull reports whether the caller sees a club's pending and
// rejected roles: the administrative role and the owning club do.
func CanViewFull(id shared.Identity, cid string) bool {
	return id.IsCC() || id.OwnsClub(cid)
}

// VisibleRoles filters a raw role list for a caller. Deleted roles are
// never visible to anyone; without full visibility only approved roles
// remain.
func VisibleRoles(roles []Role, full bool) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if r.Deleted {
			continue
		}
		if !full && !r.Approved {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CurrentRoles keeps only approved, non-deleted roles with no end period.
func CurrentRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if r.Deleted || !r.Approved || !r.Ongoing() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// PendingRoles keeps roles that are neither approved, rejected nor deleted.
func PendingRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if r.Deleted || r.Approved || r.Rejected {
			continue
		}
		out = append(out, r)
	}
	return out
}
