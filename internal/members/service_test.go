package members

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubs-council/members-service/internal/directory"
	"github.com/clubs-council/members-service/internal/shared"
)

type memoryRepo struct {
	records map[string]*Membership
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*Membership)}
}

func recordKey(cid, uid string) string { return cid + "/" + uid }

func (r *memoryRepo) Get(ctx context.Context, cid, uid string) (*Membership, error) {
	m, ok := r.records[recordKey(cid, uid)]
	if !ok {
		return nil, shared.ErrNotFound("no such record")
	}
	cp := *m
	cp.Roles = append([]Role(nil), m.Roles...)
	return &cp, nil
}

func (r *memoryRepo) ListByClub(ctx context.Context, cid string) ([]Membership, error) {
	var out []Membership
	for _, m := range r.records {
		if m.CID == cid {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByUser(ctx context.Context, uid string) ([]Membership, error) {
	var out []Membership
	for _, m := range r.records {
		if m.UID == uid {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]Membership, error) {
	var out []Membership
	for _, m := range r.records {
		out = append(out, *m)
	}
	return out, nil
}

func (r *memoryRepo) Insert(ctx context.Context, m *Membership) error {
	key := recordKey(m.CID, m.UID)
	if _, ok := r.records[key]; ok {
		return shared.ErrConflict("a record with same uid and cid already exists")
	}
	cp := *m
	r.records[key] = &cp
	return nil
}

func (r *memoryRepo) UpdateRoles(ctx context.Context, cid, uid string, roles []Role, poc bool, editedAt time.Time) error {
	m, ok := r.records[recordKey(cid, uid)]
	if !ok {
		return shared.ErrNotFound("no such record")
	}
	m.Roles = append([]Role(nil), roles...)
	m.POC = poc
	m.LastEditedTime = editedAt
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, cid, uid string) error {
	key := recordKey(cid, uid)
	if _, ok := r.records[key]; !ok {
		return shared.ErrNotFound("no such record")
	}
	delete(r.records, key)
	return nil
}

func (r *memoryRepo) ReassignClub(ctx context.Context, oldCID, newCID string) (int64, error) {
	var moved int64
	for key, m := range r.records {
		if m.CID != oldCID {
			continue
		}
		delete(r.records, key)
		m.CID = newCID
		r.records[recordKey(newCID, m.UID)] = m
		moved++
	}
	return moved, nil
}

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) ResolveUser(ctx context.Context, uid string) (*directory.User, error) {
	if !f.known[uid] {
		return nil, shared.ErrNotFound("no such user")
	}
	return &directory.User{FirstName: uid}, nil
}

type fakeClubs struct {
	categories map[string]string
}

func (f *fakeClubs) ResolveClub(ctx context.Context, cid string) (*directory.Club, error) {
	cat, ok := f.categories[cid]
	if !ok {
		return nil, shared.ErrNotFound("no such club")
	}
	return &directory.Club{CID: cid, Name: cid, Category: cat}, nil
}

const testSecret = "inter-secret"

func newTestService(repo *memoryRepo) *Service {
	users := &fakeUsers{known: map[string]bool{"alice": true, "bala": true}}
	clubs := &fakeClubs{categories: map[string]string{
		"chess-club": "cultural",
		"ec-body":    "body",
	}}
	svc := NewService(repo, users, clubs, nil, slog.Default(), testSecret)
	svc.now = func() time.Time { return testNow }
	return svc
}

var (
	ccCaller    = shared.Identity{UID: "admin", Role: shared.RoleCC}
	clubCaller  = shared.Identity{UID: "chess-club", Role: shared.RoleClub}
	otherCaller = shared.Identity{UID: "other-club", Role: shared.RoleClub}
)

func memberInput(cid, uid string, roles ...RoleInput) MembershipInput {
	if len(roles) == 0 {
		roles = []RoleInput{{Name: "Member", StartYear: 2024, StartMonth: 7}}
	}
	return MembershipInput{CID: cid, UID: uid, Roles: roles}
}

func TestCreateRequiresAuthentication(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), shared.Identity{}, memberInput("chess-club", "alice"))
	require.Equal(t, shared.KindAuthentication, shared.KindOf(err))
}

func TestCreateRejectsForeignClub(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), otherCaller, memberInput("chess-club", "alice"))
	require.Equal(t, shared.KindAuthorization, shared.KindOf(err))
}

func TestCreateRejectsEmptyRoles(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), clubCaller, MembershipInput{CID: "chess-club", UID: "alice"})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestCreateRejectsUnknownUser(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), clubCaller, memberInput("chess-club", "ghost"))
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
	require.Contains(t, err.Error(), "invalid user id")
}

func TestCreateDuplicateConflicts(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()
	_, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, clubCaller, memberInput("chess-club", "alice"))
	require.Equal(t, shared.KindConflict, shared.KindOf(err))
}

func TestCreateNormalizesUID(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	m, err := svc.Create(context.Background(), clubCaller, memberInput("chess-club", "Alice"))
	require.NoError(t, err)
	require.Equal(t, "alice", m.UID)
	_, ok := repo.records["chess-club/alice"]
	require.True(t, ok)
}

func TestCreateByClubAwaitsApproval(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	m, err := svc.Create(context.Background(), clubCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)
	require.Len(t, m.Roles, 1)
	require.False(t, m.Roles[0].Approved)
	require.NotEmpty(t, m.Roles[0].RID)
}

func TestCreateByCCAutoApproves(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	m, err := svc.Create(context.Background(), ccCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)
	require.True(t, m.Roles[0].Approved)
	require.Equal(t, testNow, *m.Roles[0].ApprovalTime)
}

func TestCreateExemptCategoryAutoApproves(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	caller := shared.Identity{UID: "ec-body", Role: shared.RoleClub}
	m, err := svc.Create(context.Background(), caller, memberInput("ec-body", "alice"))
	require.NoError(t, err)
	require.True(t, m.Roles[0].Approved)
}

func TestEditPreservesApprovalForUnchangedRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, ccCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)
	rid := created.Roles[0].RID

	edited, err := svc.Edit(ctx, clubCaller, memberInput("chess-club", "alice",
		RoleInput{Name: "Member", StartYear: 2024, StartMonth: 7},
		RoleInput{Name: "Secretary", StartYear: 2025, StartMonth: 1},
	))
	require.NoError(t, err)
	require.Len(t, edited.Roles, 2)
	require.Equal(t, rid, edited.Roles[0].RID)
	require.True(t, edited.Roles[0].Approved)
	require.False(t, edited.Roles[1].Approved)
	require.NotEmpty(t, edited.Roles[1].RID)
	require.NotEqual(t, rid, edited.Roles[1].RID)
}

func TestEditMissingRecordNotFound(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Edit(context.Background(), clubCaller, memberInput("chess-club", "alice"))
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestDeleteWholeMembership(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, clubCaller, "chess-club", "alice", "")
	require.NoError(t, err)
	require.Empty(t, repo.records)
}

func TestDeleteSingleRoleSoftDeletes(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, ccCaller, memberInput("chess-club", "alice",
		RoleInput{Name: "Member", StartYear: 2024, StartMonth: 7},
		RoleInput{Name: "Secretary", StartYear: 2025, StartMonth: 1},
	))
	require.NoError(t, err)
	rid := created.Roles[0].RID

	after, err := svc.Delete(ctx, clubCaller, "chess-club", "alice", rid)
	require.NoError(t, err)
	// the deleted role disappears from the response but stays in the store
	require.Len(t, after.Roles, 1)
	stored := repo.records["chess-club/alice"]
	require.Len(t, stored.Roles, 2)
	require.True(t, stored.Roles[0].Deleted)
	require.False(t, stored.Roles[1].Deleted)
}

func TestApproveRequiresCC(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Approve(context.Background(), clubCaller, "chess-club", "alice", "")
	require.Equal(t, shared.KindAuthorization, shared.KindOf(err))
}

func TestApproveAllNonDeletedRoles(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice",
		RoleInput{Name: "Member", StartYear: 2024, StartMonth: 7},
		RoleInput{Name: "Secretary", StartYear: 2025, StartMonth: 1},
	))
	require.NoError(t, err)
	_, err = svc.Delete(ctx, clubCaller, "chess-club", "alice", created.Roles[0].RID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, ccCaller, "chess-club", "alice", "")
	require.NoError(t, err)

	stored := repo.records["chess-club/alice"]
	require.True(t, stored.Roles[0].Deleted)
	require.False(t, stored.Roles[0].Approved)
	require.True(t, stored.Roles[1].Approved)
	require.Equal(t, testNow, *stored.Roles[1].ApprovalTime)
}

func TestApproveSingleRoleByRID(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice",
		RoleInput{Name: "Member", StartYear: 2024, StartMonth: 7},
		RoleInput{Name: "Secretary", StartYear: 2025, StartMonth: 1},
	))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, ccCaller, "chess-club", "alice", created.Roles[1].RID)
	require.NoError(t, err)

	stored := repo.records["chess-club/alice"]
	require.False(t, stored.Roles[0].Approved)
	require.True(t, stored.Roles[1].Approved)
}

func TestRejectClearsApproval(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, ccCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)

	_, err = svc.Reject(ctx, ccCaller, "chess-club", "alice", "")
	require.NoError(t, err)

	stored := repo.records["chess-club/alice"]
	require.True(t, stored.Roles[0].Rejected)
	require.False(t, stored.Roles[0].Approved)
	require.Nil(t, stored.Roles[0].ApprovalTime)
	require.Equal(t, testNow, *stored.Roles[0].RejectionTime)
}

func TestReassignClubChecksSecret(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.ReassignClub(ctx, shared.Identity{}, "chess-club", "chess-society", testSecret)
	require.Equal(t, shared.KindAuthentication, shared.KindOf(err))

	// an authenticated caller without the administrative role is a
	// privilege failure, not a missing identity
	_, err = svc.ReassignClub(ctx, clubCaller, "chess-club", "chess-society", testSecret)
	require.Equal(t, shared.KindAuthorization, shared.KindOf(err))

	_, err = svc.ReassignClub(ctx, ccCaller, "chess-club", "chess-society", "wrong")
	require.Equal(t, shared.KindAuthorization, shared.KindOf(err))
}

func TestReassignClubMovesRecords(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, ccCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, ccCaller, memberInput("chess-club", "bala"))
	require.NoError(t, err)

	moved, err := svc.ReassignClub(ctx, ccCaller, "chess-club", "chess-society", testSecret)
	require.NoError(t, err)
	require.EqualValues(t, 2, moved)
	_, ok := repo.records["chess-society/alice"]
	require.True(t, ok)
}

func TestGetRestrictedToFullViewers(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, otherCaller, "chess-club", "alice")
	require.Equal(t, shared.KindAuthorization, shared.KindOf(err))

	m, err := svc.Get(ctx, clubCaller, "chess-club", "alice")
	require.NoError(t, err)
	require.Len(t, m.Roles, 1)
}

func TestListClubMembersFiltersForPublic(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, ccCaller, memberInput("chess-club", "bala"))
	require.NoError(t, err)

	public, err := svc.ListClubMembers(ctx, shared.Identity{}, "chess-club")
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, "bala", public[0].UID)

	owning, err := svc.ListClubMembers(ctx, clubCaller, "chess-club")
	require.NoError(t, err)
	require.Len(t, owning, 2)
}

func TestListCurrentMembersKeepsOngoingApproved(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, ccCaller, memberInput("chess-club", "alice",
		RoleInput{Name: "Member", StartYear: 2023, StartMonth: 8, EndYear: intp(2024), EndMonth: intp(6)},
	))
	require.NoError(t, err)
	_, err = svc.Create(ctx, ccCaller, memberInput("chess-club", "bala"))
	require.NoError(t, err)

	current, err := svc.ListCurrentMembers(ctx, shared.Identity{}, "chess-club")
	require.NoError(t, err)
	require.Len(t, current, 1)
	require.Equal(t, "bala", current[0].UID)
}

func TestListPendingMembersCCOnly(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, clubCaller, memberInput("chess-club", "alice"))
	require.NoError(t, err)

	_, err = svc.ListPendingMembers(ctx, shared.Identity{})
	require.Equal(t, shared.KindAuthentication, shared.KindOf(err))

	_, err = svc.ListPendingMembers(ctx, clubCaller)
	require.Equal(t, shared.KindAuthorization, shared.KindOf(err))

	pending, err := svc.ListPendingMembers(ctx, ccCaller)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "alice", pending[0].UID)
}
