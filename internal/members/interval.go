package members

import (
	"time"

	"github.com/clubs-council/members-service/internal/shared"
)

// NormalizeInterval validates and normalizes a proposed role's time
// bounds against "now". Rules, in order:
//
//  1. a start month is required
//  2. an end year without an end month fails
//  3. a start strictly after the end fails
//  4. a start strictly in the future clamps to now and clears the end,
//     since a role cannot be pre-registered for a future date
//  5. an end left invalid by the clamp is cleared (ongoing), never failed
func NormalizeInterval(r Role, now time.Time) (Role, error) {
	if r.StartMonth == 0 {
		return Role{}, shared.ErrValidation("start month required")
	}
	if r.EndYear != nil && r.EndMonth == nil {
		return Role{}, shared.ErrValidation("end month required")
	}
	if end, bounded := r.end(); bounded && r.start().after(end) {
		return Role{}, shared.ErrValidation("start after end")
	}

	current := yearMonth{year: now.Year(), month: int(now.Month())}
	if r.start().after(current) {
		r.StartYear = current.year
		r.StartMonth = current.month
		r.EndYear = nil
		r.EndMonth = nil
	}

	if end, bounded := r.end(); bounded && r.start().after(end) {
		r.EndYear = nil
		r.EndMonth = nil
	}
	if r.EndYear == nil || r.EndMonth == nil {
		r.EndYear = nil
		r.EndMonth = nil
	}
	return r, nil
}
