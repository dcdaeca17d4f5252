package members

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"golang.org/x/text/cases"

	"github.com/clubs-council/members-service/internal/directory"
	"github.com/clubs-council/members-service/internal/shared"
)

// RepositoryPort defines the narrow store contract the service needs.
type RepositoryPort interface {
	Get(ctx context.Context, cid, uid string) (*Membership, error)
	ListByClub(ctx context.Context, cid string) ([]Membership, error)
	ListByUser(ctx context.Context, uid string) ([]Membership, error)
	ListAll(ctx context.Context) ([]Membership, error)
	Insert(ctx context.Context, m *Membership) error
	UpdateRoles(ctx context.Context, cid, uid string, roles []Role, poc bool, editedAt time.Time) error
	Delete(ctx context.Context, cid, uid string) error
	ReassignClub(ctx context.Context, oldCID, newCID string) (int64, error)
}

// UserDirectoryPort resolves user identities through the gateway.
type UserDirectoryPort interface {
	ResolveUser(ctx context.Context, uid string) (*directory.User, error)
}

// ClubDirectoryPort resolves club details through the gateway.
type ClubDirectoryPort interface {
	ResolveClub(ctx context.Context, cid string) (*directory.Club, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates membership writes and visibility-filtered reads.
type Service struct {
	repo        RepositoryPort
	users       UserDirectoryPort
	clubs       ClubDirectoryPort
	audit       AuditPort
	logger      *slog.Logger
	interSecret string
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, users UserDirectoryPort, clubs ClubDirectoryPort, audit AuditPort, logger *slog.Logger, interSecret string) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		clubs:       clubs,
		audit:       audit,
		logger:      logger,
		interSecret: interSecret,
		now:         time.Now,
	}
}

// RoleInput is one proposed role in a membership write.
type RoleInput struct {
	Name       string `json:"name" validate:"required,min=1,max=99"`
	StartYear  int    `json:"start_year" validate:"required,gte=2010,lte=2050"`
	StartMonth int    `json:"start_month" validate:"omitempty,gte=1,lte=12"`
	EndYear    *int   `json:"end_year" validate:"omitempty,gt=2010,lte=2051"`
	EndMonth   *int   `json:"end_month" validate:"omitempty,gte=1,lte=12"`
}

// MembershipInput is the full replacement submission for one (cid, uid).
type MembershipInput struct {
	CID   string      `json:"cid" validate:"required"`
	UID   string      `json:"uid" validate:"required"`
	POC   bool        `json:"poc"`
	Roles []RoleInput `json:"roles" validate:"dive"`
}

var uidFolder = cases.Fold()

// NormalizeUID canonicalises a user identifier for the partition key.
func NormalizeUID(uid string) string {
	return uidFolder.String(uid)
}

// authorizeWrite admits the administrative role and the club named by
// cid; everyone else is rejected.
func authorizeWrite(caller shared.Identity, cid string) error {
	if caller.Anonymous() {
		return shared.ErrAuthentication("not authenticated")
	}
	if caller.IsCC() || caller.OwnsClub(cid) {
		return nil
	}
	return shared.ErrAuthorization("not authorized for this club")
}

// prepareRoles normalizes each proposed role against now. Any failure
// aborts the whole write.
func (s *Service) prepareRoles(inputs []RoleInput, now time.Time) ([]Role, error) {
	if len(inputs) == 0 {
		return nil, shared.ErrValidation("roles cannot be empty")
	}
	roles := make([]Role, 0, len(inputs))
	for _, in := range inputs {
		role := Role{
			Name:       in.Name,
			StartYear:  in.StartYear,
			StartMonth: in.StartMonth,
			EndYear:    in.EndYear,
			EndMonth:   in.EndMonth,
		}
		normalized, err := NormalizeInterval(role, now)
		if err != nil {
			return nil, err
		}
		roles = append(roles, normalized)
	}
	return roles, nil
}

func (s *Service) clubCategory(ctx context.Context, cid string) (string, error) {
	club, err := s.clubs.ResolveClub(ctx, cid)
	if err != nil {
		return "", err
	}
	return club.Category, nil
}

// Create registers the first roles of a user in a club.
func (s *Service) Create(ctx context.Context, caller shared.Identity, input MembershipInput) (*Membership, error) {
	if err := authorizeWrite(caller, input.CID); err != nil {
		return nil, err
	}
	input.UID = NormalizeUID(input.UID)

	now := s.now()
	proposed, err := s.prepareRoles(input.Roles, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Get(ctx, input.CID, input.UID); err == nil {
		return nil, shared.ErrConflict("a record with same uid and cid already exists")
	} else if shared.KindOf(err) != shared.KindNotFound {
		return nil, err
	}

	if _, err := s.users.ResolveUser(ctx, input.UID); err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, shared.ErrNotFound("invalid user id")
		}
		return nil, err
	}

	category, err := s.clubCategory(ctx, input.CID)
	if err != nil {
		return nil, err
	}
	if AutoApprove(caller.Role, category) {
		for i := range proposed {
			proposed[i].Approved = true
			t := now
			proposed[i].ApprovalTime = &t
		}
	}
	proposed = AssignRoleIDs(proposed, now)

	m := &Membership{
		CID:            input.CID,
		UID:            input.UID,
		POC:            input.POC,
		CreationTime:   now,
		LastEditedTime: now,
		Roles:          proposed,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, caller, "member.create", m.CID, m.UID, nil)
	return s.withVisibleRoles(m, true), nil
}

// Edit reconciles a full replacement role list against the stored one,
// preserving approval history for unchanged roles.
func (s *Service) Edit(ctx context.Context, caller shared.Identity, input MembershipInput) (*Membership, error) {
	if err := authorizeWrite(caller, input.CID); err != nil {
		return nil, err
	}
	input.UID = NormalizeUID(input.UID)

	now := s.now()
	proposed, err := s.prepareRoles(input.Roles, now)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Get(ctx, input.CID, input.UID)
	if err != nil {
		return nil, err
	}

	category, err := s.clubCategory(ctx, input.CID)
	if err != nil {
		return nil, err
	}

	merged := Reconcile(proposed, stored.Roles, AutoApprove(caller.Role, category), now)
	merged = AssignRoleIDs(merged, now)

	if err := s.repo.UpdateRoles(ctx, input.CID, input.UID, merged, input.POC, now); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, caller, "member.edit", input.CID, input.UID, nil)

	stored.Roles = merged
	stored.POC = input.POC
	stored.LastEditedTime = now
	return s.withVisibleRoles(stored, true), nil
}

// Delete removes an entire membership, or soft-deletes a single role when
// rid is given.
func (s *Service) Delete(ctx context.Context, caller shared.Identity, cid, uid, rid string) (*Membership, error) {
	if err := authorizeWrite(caller, cid); err != nil {
		return nil, err
	}
	uid = NormalizeUID(uid)

	stored, err := s.repo.Get(ctx, cid, uid)
	if err != nil {
		return nil, err
	}

	if rid == "" {
		if err := s.repo.Delete(ctx, cid, uid); err != nil {
			return nil, err
		}
		s.recordAudit(ctx, caller, "member.delete", cid, uid, nil)
		return stored, nil
	}

	now := s.now()
	for i := range stored.Roles {
		if stored.Roles[i].RID == rid {
			stored.Roles[i].Deleted = true
		}
	}
	roles := AssignRoleIDs(stored.Roles, now)
	if err := s.repo.UpdateRoles(ctx, cid, uid, roles, stored.POC, now); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, caller, "member.delete_role", cid, uid, map[string]any{"rid": rid})

	stored.Roles = roles
	stored.LastEditedTime = now
	return s.withVisibleRoles(stored, true), nil
}

// Approve marks roles approved: the role matching rid, or every
// non-deleted role when rid is empty. Administrative callers only.
func (s *Service) Approve(ctx context.Context, caller shared.Identity, cid, uid, rid string) (*Membership, error) {
	return s.setApproval(ctx, caller, cid, uid, rid, true)
}

// Reject marks roles rejected, symmetric to Approve.
func (s *Service) Reject(ctx context.Context, caller shared.Identity, cid, uid, rid string) (*Membership, error) {
	return s.setApproval(ctx, caller, cid, uid, rid, false)
}

func (s *Service) setApproval(ctx context.Context, caller shared.Identity, cid, uid, rid string, approve bool) (*Membership, error) {
	if caller.Anonymous() {
		return nil, shared.ErrAuthentication("not authenticated")
	}
	if !caller.IsCC() {
		return nil, shared.ErrAuthorization("administrative role required")
	}
	uid = NormalizeUID(uid)

	stored, err := s.repo.Get(ctx, cid, uid)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range stored.Roles {
		role := &stored.Roles[i]
		if rid == "" {
			if role.Deleted {
				continue
			}
		} else if role.RID != rid {
			continue
		}
		if approve {
			role.Approved = true
			t := now
			role.ApprovalTime = &t
			role.Rejected = false
			role.RejectionTime = nil
		} else {
			role.Rejected = true
			t := now
			role.RejectionTime = &t
			role.Approved = false
			role.ApprovalTime = nil
		}
	}

	roles := AssignRoleIDs(stored.Roles, now)
	if err := s.repo.UpdateRoles(ctx, cid, uid, roles, stored.POC, now); err != nil {
		return nil, err
	}
	action := "member.approve"
	if !approve {
		action = "member.reject"
	}
	s.recordAudit(ctx, caller, action, cid, uid, map[string]any{"rid": rid})

	stored.Roles = roles
	stored.LastEditedTime = now
	return s.withVisibleRoles(stored, true), nil
}

// ReassignClub moves all memberships of a renamed club to its new
// identifier. Requires the administrative role plus the inter-service
// secret, compared in constant time.
func (s *Service) ReassignClub(ctx context.Context, caller shared.Identity, oldCID, newCID, secret string) (int64, error) {
	if caller.Anonymous() {
		return 0, shared.ErrAuthentication("not authenticated")
	}
	if !caller.IsCC() {
		return 0, shared.ErrAuthorization("administrative role required")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.interSecret)) != 1 {
		return 0, shared.ErrAuthorization("invalid inter-communication secret")
	}
	count, err := s.repo.ReassignClub(ctx, oldCID, newCID)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, caller, "member.reassign_club", oldCID, newCID, map[string]any{"moved": count})
	return count, nil
}

// Get returns one membership with all its non-deleted roles. Restricted
// to the administrative role and the owning club.
func (s *Service) Get(ctx context.Context, caller shared.Identity, cid, uid string) (*Membership, error) {
	if caller.Anonymous() {
		return nil, shared.ErrAuthentication("not authenticated")
	}
	if !CanViewFull(caller, cid) {
		return nil, shared.ErrAuthorization("not authorized for this club")
	}
	m, err := s.repo.Get(ctx, cid, NormalizeUID(uid))
	if err != nil {
		return nil, err
	}
	return s.withVisibleRoles(m, true), nil
}

// ListUserRoles returns a user's memberships across clubs, each filtered
// to what the caller may see. Memberships with no visible roles are
// dropped.
func (s *Service) ListUserRoles(ctx context.Context, caller shared.Identity, uid string) ([]Membership, error) {
	list, err := s.repo.ListByUser(ctx, NormalizeUID(uid))
	if err != nil {
		return nil, err
	}
	out := make([]Membership, 0, len(list))
	for _, m := range list {
		m.Roles = VisibleRoles(m.Roles, CanViewFull(caller, m.CID))
		if len(m.Roles) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListClubMembers returns a club's members, filtered per caller role.
func (s *Service) ListClubMembers(ctx context.Context, caller shared.Identity, cid string) ([]Membership, error) {
	list, err := s.repo.ListByClub(ctx, cid)
	if err != nil {
		return nil, err
	}
	full := CanViewFull(caller, cid)
	out := make([]Membership, 0, len(list))
	for _, m := range list {
		m.Roles = VisibleRoles(m.Roles, full)
		if len(m.Roles) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListCurrentMembers returns members holding ongoing approved roles.
func (s *Service) ListCurrentMembers(ctx context.Context, caller shared.Identity, cid string) ([]Membership, error) {
	list, err := s.repo.ListByClub(ctx, cid)
	if err != nil {
		return nil, err
	}
	out := make([]Membership, 0, len(list))
	for _, m := range list {
		m.Roles = CurrentRoles(m.Roles)
		if len(m.Roles) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListPendingMembers returns members with roles awaiting review across
// all clubs. Administrative callers only.
func (s *Service) ListPendingMembers(ctx context.Context, caller shared.Identity) ([]Membership, error) {
	if caller.Anonymous() {
		return nil, shared.ErrAuthentication("not authenticated")
	}
	if !caller.IsCC() {
		return nil, shared.ErrAuthorization("administrative role required")
	}
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Membership, 0, len(list))
	for _, m := range list {
		m.Roles = PendingRoles(m.Roles)
		if len(m.Roles) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// withVisibleRoles returns a copy with the role list filtered for the
// response; writes always echo the full-visibility view.
func (s *Service) withVisibleRoles(m *Membership, full bool) *Membership {
	out := *m
	out.Roles = VisibleRoles(m.Roles, full)
	return &out
}

// recordAudit is best effort: a failed audit write never fails the
// operation, it is logged and dropped.
func (s *Service) recordAudit(ctx context.Context, caller shared.Identity, action, cid, uid string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		Actor:  caller.UID,
		Role:   caller.Role,
		Action: action,
		Entity: "membership",
		Ref:    cid + "/" + uid,
		Meta:   meta,
		At:     s.now(),
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
