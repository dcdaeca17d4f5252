// Package members implements the role-state reconciliation engine: the
// interval normalizer, the approval carry-over merge, stable role
// identifier assignment and per-caller visibility filtering.
package members

import (
	"time"
	"unicode/utf8"

	"github.com/clubs-council/members-service/internal/shared"
)

// Year bounds carried over from the membership document schema.
const (
	MinStartYear = 2010
	MaxStartYear = 2050
	MaxEndYear   = 2051
)

// Role is one assignment of a named position to a user within a club for
// a time interval. A nil end pair means the role is ongoing.
type Role struct {
	RID           string     `json:"rid"`
	Name          string     `json:"name"`
	StartYear     int        `json:"start_year"`
	StartMonth    int        `json:"start_month"`
	EndYear       *int       `json:"end_year"`
	EndMonth      *int       `json:"end_month"`
	Approved      bool       `json:"approved"`
	ApprovalTime  *time.Time `json:"approval_time,omitempty"`
	Rejected      bool       `json:"rejected"`
	RejectionTime *time.Time `json:"rejection_time,omitempty"`
	Deleted       bool       `json:"deleted"`
}

// Membership is the unique (cid, uid) pairing holding a user's roles in
// one club. Roles have no identity outside their membership document.
type Membership struct {
	CID            string    `json:"cid"`
	UID            string    `json:"uid"`
	POC            bool      `json:"poc"`
	CreationTime   time.Time `json:"creation_time"`
	LastEditedTime time.Time `json:"last_edited_time"`
	Roles          []Role    `json:"roles"`
}

// yearMonth orders (year, month) pairs lexicographically.
type yearMonth struct {
	year  int
	month int
}

func (a yearMonth) after(b yearMonth) bool {
	if a.year != b.year {
		return a.year > b.year
	}
	return a.month > b.month
}

func (r Role) start() yearMonth {
	return yearMonth{year: r.StartYear, month: r.StartMonth}
}

func (r Role) end() (yearMonth, bool) {
	if r.EndYear == nil || r.EndMonth == nil {
		return yearMonth{}, false
	}
	return yearMonth{year: *r.EndYear, month: *r.EndMonth}, true
}

// Ongoing reports whether the role has no end period.
func (r Role) Ongoing() bool {
	_, bounded := r.end()
	return !bounded
}

// sameInterval reports whether two roles describe the same position over
// the same period. This is the reconciler's match key.
func (r Role) sameInterval(o Role) bool {
	if r.Name != o.Name || r.start() != o.start() {
		return false
	}
	re, rok := r.end()
	oe, ook := o.end()
	if rok != ook {
		return false
	}
	return !rok || re == oe
}

// Validate checks the schema bounds and the approval invariant. The store
// enforces no schema of its own, so this runs on read as well as write.
func (r Role) Validate() error {
	if n := utf8.RuneCountInString(r.Name); n < 1 || n > 99 {
		return shared.ErrValidation("role name must be 1-99 characters")
	}
	if r.StartYear < MinStartYear || r.StartYear > MaxStartYear {
		return shared.Errorf(shared.KindValidation, "start year must be within [%d, %d]", MinStartYear, MaxStartYear)
	}
	if r.StartMonth < 1 || r.StartMonth > 12 {
		return shared.ErrValidation("start month must be within [1, 12]")
	}
	if r.EndYear != nil && (*r.EndYear <= MinStartYear || *r.EndYear > MaxEndYear) {
		return shared.Errorf(shared.KindValidation, "end year must be within (%d, %d]", MinStartYear, MaxEndYear)
	}
	if r.EndMonth != nil && (*r.EndMonth < 1 || *r.EndMonth > 12) {
		return shared.ErrValidation("end month must be within [1, 12]")
	}
	if r.Approved && r.Rejected {
		return shared.ErrValidation("role cannot be both approved and rejected")
	}
	return nil
}

// Validate checks the membership document and every embedded role.
func (m Membership) Validate() error {
	if m.CID == "" {
		return shared.ErrValidation("cid required")
	}
	if m.UID == "" {
		return shared.ErrValidation("uid required")
	}
	for _, r := range m.Roles {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
