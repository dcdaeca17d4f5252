package members

import (
	"strconv"
	"time"
)

// AssignRoleIDs fills a stable identifier into every role lacking one:
// the current unix milliseconds plus the role's position in the list,
// unique within one assignment batch even when several roles are created
// in the same instant. Existing identifiers are never touched; the
// reconciler's carry-over depends on them staying stable across edits.
func AssignRoleIDs(roles []Role, now time.Time) []Role {
	base := now.UnixMilli()
	for i := range roles {
		if roles[i].RID == "" {
			roles[i].RID = strconv.FormatInt(base+int64(i), 10)
		}
	}
	return roles
}
