package certificates

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clubs-council/members-service/internal/directory"
	"github.com/clubs-council/members-service/internal/members"
	"github.com/clubs-council/members-service/internal/shared"
)

// RepositoryPort defines the certificate store contract.
type RepositoryPort interface {
	Insert(ctx context.Context, c *Certificate) error
	GetByNumber(ctx context.Context, number string) (*Certificate, error)
	ListByState(ctx context.Context, state State) ([]Certificate, error)
	ListByUser(ctx context.Context, uid string) ([]Certificate, error)
	CountByYearCode(ctx context.Context, code string) (int64, error)
	Update(ctx context.Context, c *Certificate) error
}

// MembershipSource supplies the membership data snapshotted into a
// certificate at request time.
type MembershipSource interface {
	ListByUser(ctx context.Context, uid string) ([]members.Membership, error)
}

// ClubDirectoryPort resolves club names for the snapshot.
type ClubDirectoryPort interface {
	ResolveClub(ctx context.Context, cid string) (*directory.Club, error)
}

// MailerPort enqueues state-change notifications. Fire and forget: an
// enqueue failure never fails the transition.
type MailerPort interface {
	SendCertificateUpdate(ctx context.Context, uid, number string, state State) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the certificate approval state machine.
type Service struct {
	repo        RepositoryPort
	memberships MembershipSource
	clubs       ClubDirectoryPort
	mailer      MailerPort
	audit       AuditPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, memberships MembershipSource, clubs ClubDirectoryPort, mailer MailerPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		memberships: memberships,
		clubs:       clubs,
		mailer:      mailer,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

// Request creates a certificate in the first pending stage and returns it
// along with the verification key, which is never recoverable afterwards.
func (s *Service) Request(ctx context.Context, caller shared.Identity, reason string) (*Certificate, string, error) {
	if caller.Anonymous() || caller.UID == "" {
		return nil, "", shared.ErrAuthentication("not authenticated")
	}
	uid := members.NormalizeUID(caller.UID)

	data, err := s.snapshot(ctx, uid)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	code := yearCode(now)
	count, err := s.repo.CountByYearCode(ctx, code)
	if err != nil {
		return nil, "", err
	}

	key, err := newVerificationKey()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	cert := &Certificate{
		ID:            uuid.New(),
		Number:        formatNumber(code, count+1),
		UID:           uid,
		State:         StatePendingCC,
		Data:          data,
		RequestReason: reason,
		KeyHash:       string(hash),
		RequestedAt:   now,
	}
	if err := s.repo.Insert(ctx, cert); err != nil {
		return nil, "", err
	}
	s.recordAudit(ctx, caller, "certificate.request", cert.Number, nil)
	return cert, key, nil
}

// snapshot serialises the user's non-deleted approved roles per club.
func (s *Service) snapshot(ctx context.Context, uid string) (json.RawMessage, error) {
	list, err := s.memberships.ListByUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	snaps := make([]MembershipSnapshot, 0, len(list))
	for _, m := range list {
		roles := make([]RoleSnapshot, 0, len(m.Roles))
		for _, r := range m.Roles {
			if r.Deleted || !r.Approved {
				continue
			}
			roles = append(roles, RoleSnapshot{
				Name:       r.Name,
				StartYear:  r.StartYear,
				StartMonth: r.StartMonth,
				EndYear:    r.EndYear,
				EndMonth:   r.EndMonth,
			})
		}
		if len(roles) == 0 {
			continue
		}
		snap := MembershipSnapshot{CID: m.CID, Roles: roles}
		if club, err := s.clubs.ResolveClub(ctx, m.CID); err == nil {
			snap.ClubName = club.Name
		} else if shared.KindOf(err) != shared.KindNotFound {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if len(snaps) == 0 {
		return nil, shared.ErrValidation("no approved memberships to certify")
	}
	return json.Marshal(snaps)
}

// Approve advances the certificate one stage: the administrative role
// moves pending_cc to pending_slo, the second-stage approver moves
// pending_slo to approved. Every other combination fails.
func (s *Service) Approve(ctx context.Context, caller shared.Identity, number string) (*Certificate, error) {
	return s.transition(ctx, caller, number, true)
}

// Reject terminates the certificate from either pending stage, gated on
// the same per-stage approver roles as Approve.
func (s *Service) Reject(ctx context.Context, caller shared.Identity, number string) (*Certificate, error) {
	return s.transition(ctx, caller, number, false)
}

func (s *Service) transition(ctx context.Context, caller shared.Identity, number string, approve bool) (*Certificate, error) {
	if caller.Anonymous() {
		return nil, shared.ErrAuthentication("not authenticated")
	}

	cert, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if cert.State.Terminal() {
		return nil, shared.Errorf(shared.KindState, "certificate already %s", cert.State)
	}

	now := s.now()
	switch cert.State {
	case StatePendingCC:
		if !caller.IsCC() {
			return nil, shared.ErrAuthorization("administrative approval required at this stage")
		}
		if approve {
			cert.State = StatePendingSLO
			cert.CCApprover = caller.UID
			cert.CCApprovedAt = &now
		} else {
			cert.State = StateRejected
			cert.RejectedBy = caller.UID
			cert.RejectedAt = &now
		}
	case StatePendingSLO:
		if caller.Role != shared.RoleSLO {
			return nil, shared.ErrAuthorization("secondary approval required at this stage")
		}
		if approve {
			cert.State = StateApproved
			cert.SLOApprover = caller.UID
			cert.SLOApprovedAt = &now
		} else {
			cert.State = StateRejected
			cert.RejectedBy = caller.UID
			cert.RejectedAt = &now
		}
	default:
		return nil, shared.Errorf(shared.KindState, "certificate in unexpected state %q", cert.State)
	}

	if err := s.repo.Update(ctx, cert); err != nil {
		return nil, err
	}

	action := "certificate.approve"
	if !approve {
		action = "certificate.reject"
	}
	s.recordAudit(ctx, caller, action, cert.Number, map[string]any{"state": string(cert.State)})
	s.notify(ctx, cert)
	return cert, nil
}

// Verify checks a certificate number against a caller-supplied key. The
// failure reasons are distinct so callers can tell "will never be valid"
// from "not valid yet".
func (s *Service) Verify(ctx context.Context, number, key string) (*Certificate, error) {
	cert, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if cert.State == StateRejected {
		return nil, shared.ErrState("certificate rejected")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cert.KeyHash), []byte(key)); err != nil {
		return nil, shared.ErrAuthorization("verification key mismatch")
	}
	if cert.State != StateApproved {
		return nil, shared.ErrState("certificate not yet approved")
	}
	return cert, nil
}

// Get returns one certificate to its owner or to either approver role.
func (s *Service) Get(ctx context.Context, caller shared.Identity, number string) (*Certificate, error) {
	if caller.Anonymous() {
		return nil, shared.ErrAuthentication("not authenticated")
	}
	cert, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !caller.IsCC() && caller.Role != shared.RoleSLO && members.NormalizeUID(caller.UID) != cert.UID {
		return nil, shared.ErrAuthorization("not authorized for this certificate")
	}
	return cert, nil
}

// ListMine returns every certificate the caller has requested, in any
// state.
func (s *Service) ListMine(ctx context.Context, caller shared.Identity) ([]Certificate, error) {
	if caller.Anonymous() || caller.UID == "" {
		return nil, shared.ErrAuthentication("not authenticated")
	}
	return s.repo.ListByUser(ctx, members.NormalizeUID(caller.UID))
}

// List returns certificates in a state, for approver roles only.
func (s *Service) List(ctx context.Context, caller shared.Identity, state State) ([]Certificate, error) {
	if caller.Anonymous() {
		return nil, shared.ErrAuthentication("not authenticated")
	}
	if !caller.IsCC() && caller.Role != shared.RoleSLO {
		return nil, shared.ErrAuthorization("approver role required")
	}
	return s.repo.ListByState(ctx, state)
}

func (s *Service) notify(ctx context.Context, cert *Certificate) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendCertificateUpdate(ctx, cert.UID, cert.Number, cert.State); err != nil {
		s.logger.Warn("certificate notification enqueue failed",
			slog.String("number", cert.Number), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, caller shared.Identity, action, number string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		Actor:  caller.UID,
		Role:   caller.Role,
		Action: action,
		Entity: "certificate",
		Ref:    number,
		Meta:   meta,
		At:     s.now(),
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
