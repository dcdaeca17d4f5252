package members

import (
	"time"

	"github.com/clubs-council/members-service/internal/shared"
)

// AutoApprove reports whether a submission skips review: the
// administrative role always does, as do clubs in categories exempt from
// review. Both the create and edit paths consult this single policy.
func AutoApprove(callerRole, clubCategory string) bool {
	if callerRole == shared.RoleCC {
		return true
	}
	switch clubCategory {
	case "body", "admin":
		return true
	}
	return false
}

// Reconcile merges a full replacement list of proposed roles against the
// stored list. A proposed role matching a stored role on (name, start,
// end) carries over that role's approval state, timestamps and identifier;
// the stored role is retired from the pool so it matches at most once.
// Unmatched proposed roles are new: approved per policy, stamped with now
// when auto-approved, rejection state cleared.
func Reconcile(proposed, stored []Role, autoApprove bool, now time.Time) []Role {
	pool := make([]Role, len(stored))
	copy(pool, stored)

	merged := make([]Role, 0, len(proposed))
	for _, p := range proposed {
		matched := false
		for i, s := range pool {
			if !p.sameInterval(s) {
				continue
			}
			p.RID = s.RID
			p.Approved = s.Approved
			p.ApprovalTime = s.ApprovalTime
			p.Rejected = s.Rejected
			p.RejectionTime = s.RejectionTime
			p.Deleted = s.Deleted
			pool = append(pool[:i], pool[i+1:]...)
			matched = true
			break
		}
		if !matched {
			p.RID = ""
			p.Approved = autoApprove
			if autoApprove {
				t := now
				p.ApprovalTime = &t
			} else {
				p.ApprovalTime = nil
			}
			p.Rejected = false
			p.RejectionTime = nil
			p.Deleted = false
		}
		merged = append(merged, p)
	}
	return merged
}
