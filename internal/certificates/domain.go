// Package certificates implements the two-stage certificate approval
// workflow and verification.
package certificates

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State enumerates the certificate approval pipeline.
type State string

const (
	// StatePendingCC awaits the administrative first-stage approval.
	StatePendingCC State = "pending_cc"
	// StatePendingSLO awaits the second-stage approver.
	StatePendingSLO State = "pending_slo"
	// StateApproved is terminal: the certificate is issued and verifiable.
	StateApproved State = "approved"
	// StateRejected is terminal: reachable from either pending stage.
	StateRejected State = "rejected"
)

// Terminal reports whether no further transition is legal.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// Certificate is one issuance request. Data is a snapshot of the user's
// memberships at request time, not a live reference.
type Certificate struct {
	ID            uuid.UUID       `json:"id"`
	Number        string          `json:"certificate_number"`
	UID           string          `json:"uid"`
	State         State           `json:"state"`
	Data          json.RawMessage `json:"certificate_data"`
	RequestReason string          `json:"request_reason,omitempty"`
	KeyHash       string          `json:"-"`
	RequestedAt   time.Time       `json:"requested_at"`
	CCApprover    string          `json:"cc_approver,omitempty"`
	CCApprovedAt  *time.Time      `json:"cc_approved_at,omitempty"`
	SLOApprover   string          `json:"slo_approver,omitempty"`
	SLOApprovedAt *time.Time      `json:"slo_approved_at,omitempty"`
	RejectedBy    string          `json:"rejected_by,omitempty"`
	RejectedAt    *time.Time      `json:"rejected_at,omitempty"`
}

// MembershipSnapshot is one club entry inside certificate data.
type MembershipSnapshot struct {
	CID      string         `json:"cid"`
	ClubName string         `json:"club_name"`
	Roles    []RoleSnapshot `json:"roles"`
}

// RoleSnapshot is one approved role inside certificate data.
type RoleSnapshot struct {
	Name       string `json:"name"`
	StartYear  int    `json:"start_year"`
	StartMonth int    `json:"start_month"`
	EndYear    *int   `json:"end_year"`
	EndMonth   *int   `json:"end_month"`
}
