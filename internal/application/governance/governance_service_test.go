package governance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
	"github.com/vsla/backend/internal/infrastructure/coordination"
)

// fakeAssignmentRepo is an in-memory governance.Repository
type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments []governance.OfficerAssignment
}

func (r *fakeAssignmentRepo) Rotate(ctx context.Context, change *governance.RotationChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if change.ToClose != nil {
		for i := range r.assignments {
			if r.assignments[i].ID == change.ToClose.ID {
				r.assignments[i].EndDate = change.ToClose.EndDate
			}
		}
	}
	r.assignments = append(r.assignments, *change.New)
	return nil
}

func (r *fakeAssignmentRepo) FindOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]governance.OfficerAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]governance.OfficerAssignment, 0)
	for _, a := range r.assignments {
		if a.GroupID == groupID && a.EndDate == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) History(ctx context.Context, groupID uuid.UUID) ([]governance.OfficerAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]governance.OfficerAssignment, 0)
	for i := len(r.assignments) - 1; i >= 0; i-- {
		if r.assignments[i].GroupID == groupID {
			out = append(out, r.assignments[i])
		}
	}
	return out, nil
}

// fakeGroupRepo is an in-memory group.Repository
type fakeGroupRepo struct {
	mu     sync.Mutex
	groups map[uuid.UUID]*group.Group
}

func (r *fakeGroupRepo) Create(ctx context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	return nil
}

func (r *fakeGroupRepo) FindByID(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, shared.ErrNotFound.WithDetails("group %s", id)
	}
	clone := *g
	return &clone, nil
}

func (r *fakeGroupRepo) FindAll(ctx context.Context, filter shared.Filter) ([]group.Group, int64, error) {
	return nil, 0, nil
}

func (r *fakeGroupRepo) Save(ctx context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	return nil
}

// fakeMemberRepo is an in-memory group.MemberRepository
type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[uuid.UUID]*group.Member
}

func (r *fakeMemberRepo) Create(ctx context.Context, m *group.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
	return nil
}

func (r *fakeMemberRepo) FindByID(ctx context.Context, id uuid.UUID) (*group.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, shared.ErrNotFound.WithDetails("member %s", id)
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMemberRepo) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]group.Member, error) {
	return nil, nil
}

func (r *fakeMemberRepo) Save(ctx context.Context, m *group.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
	return nil
}

type fixture struct {
	service *GovernanceService
	group   *group.Group
	members *fakeMemberRepo
	repo    *fakeAssignmentRepo
}

func newFixture(t *testing.T, allowDualRoles bool) *fixture {
	t.Helper()

	g, err := group.NewGroup("Bugolobi United", nil, valueobject.ZeroUGX())
	require.NoError(t, err)
	g.ClearDomainEvents()

	groups := &fakeGroupRepo{groups: map[uuid.UUID]*group.Group{g.ID: g}}
	members := &fakeMemberRepo{members: make(map[uuid.UUID]*group.Member)}
	repo := &fakeAssignmentRepo{}

	svc := NewGovernanceService(repo, groups, members, coordination.NewGroupCoordinator(4), nil, Config{
		AllowDualRoles: allowDualRoles,
	})
	return &fixture{service: svc, group: g, members: members, repo: repo}
}

func (f *fixture) addMember(t *testing.T, name string) *group.Member {
	t.Helper()
	m, err := group.NewMember(f.group.ID, name, "")
	require.NoError(t, err)
	require.NoError(t, f.members.Create(context.Background(), m))
	return m
}

func TestAssignOfficer_FillsVacantRole(t *testing.T) {
	f := newFixture(t, false)
	m := f.addMember(t, "Grace Nakato")

	resp, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{
		MemberID: m.ID,
		Role:     "chair",
	})
	require.NoError(t, err)
	assert.Equal(t, "chair", resp.Role)
	assert.Equal(t, m.ID, resp.MemberID)
	assert.Nil(t, resp.EndDate)

	// The member is flagged as an officer
	updated, err := f.members.FindByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, group.MemberRoleOfficer, updated.Role)
}

func TestAssignOfficer_RotationClosesOutgoingTenure(t *testing.T) {
	f := newFixture(t, false)
	first := f.addMember(t, "Grace Nakato")
	second := f.addMember(t, "Joseph Okello")

	_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: first.ID, Role: "treasurer"})
	require.NoError(t, err)
	_, err = f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: second.ID, Role: "treasurer"})
	require.NoError(t, err)

	roster, err := f.service.GetRoster(context.Background(), f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, roster.Roster["treasurer"])

	history, err := f.service.History(context.Background(), f.group.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	closed := 0
	for _, a := range history {
		if a.EndDate != nil {
			closed++
			assert.Equal(t, first.ID, a.MemberID)
		}
	}
	assert.Equal(t, 1, closed)
}

func TestAssignOfficer_DualRolePolicy(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		f := newFixture(t, false)
		m := f.addMember(t, "Grace Nakato")

		_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
		require.NoError(t, err)

		_, err = f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "secretary"})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrRoleConflict.Code, domainErr.Code)
	})

	t.Run("allowed when configured", func(t *testing.T) {
		f := newFixture(t, true)
		m := f.addMember(t, "Grace Nakato")

		_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
		require.NoError(t, err)
		_, err = f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "secretary"})
		require.NoError(t, err)

		roster, err := f.service.GetRoster(context.Background(), f.group.ID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, roster.Roster["chair"])
		assert.Equal(t, m.ID, roster.Roster["secretary"])
	})
}

func TestAssignOfficer_RejectsReassigningCurrentHolder(t *testing.T) {
	f := newFixture(t, false)
	m := f.addMember(t, "Grace Nakato")

	_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
	require.NoError(t, err)

	_, err = f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrAlreadyExists.Code, domainErr.Code)
}

func TestAssignOfficer_RejectsExitedMember(t *testing.T) {
	f := newFixture(t, false)
	m := f.addMember(t, "Grace Nakato")
	require.NoError(t, m.Exit())
	require.NoError(t, f.members.Save(context.Background(), m))

	_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrUnknownMember.Code, domainErr.Code)
}

func TestAssignOfficer_RejectsDissolvedGroup(t *testing.T) {
	f := newFixture(t, false)
	m := f.addMember(t, "Grace Nakato")
	require.NoError(t, f.group.Dissolve())

	_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
}

func TestGetRoster_VacantRolesOmitted(t *testing.T) {
	f := newFixture(t, false)
	m := f.addMember(t, "Grace Nakato")

	_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "secretary"})
	require.NoError(t, err)

	roster, err := f.service.GetRoster(context.Background(), f.group.ID)
	require.NoError(t, err)
	assert.Len(t, roster.Roster, 1)
	_, hasChair := roster.Roster["chair"]
	assert.False(t, hasChair)
}

func TestHistory_PreservesClosedTenures(t *testing.T) {
	f := newFixture(t, false)
	first := f.addMember(t, "Grace Nakato")
	second := f.addMember(t, "Joseph Okello")
	third := f.addMember(t, "Sarah Achieng")

	for _, m := range []*group.Member{first, second, third} {
		_, err := f.service.AssignOfficer(context.Background(), f.group.ID, AssignOfficerRequest{MemberID: m.ID, Role: "chair"})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	history, err := f.service.History(context.Background(), f.group.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	open := 0
	for _, a := range history {
		if a.EndDate == nil {
			open++
			assert.Equal(t, third.ID, a.MemberID)
		}
	}
	assert.Equal(t, 1, open)
}
