package governance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
)

func activeMember(t *testing.T, groupID uuid.UUID) *group.Member {
	t.Helper()
	m, err := group.NewMember(groupID, "Nakato Grace", "+256700000001")
	require.NoError(t, err)
	return m
}

func openAssignment(t *testing.T, groupID, memberID uuid.UUID, role OfficerRole) OfficerAssignment {
	t.Helper()
	a, err := NewOfficerAssignment(groupID, memberID, role)
	require.NoError(t, err)
	return *a
}

func TestPlanRotation(t *testing.T) {
	groupID := uuid.New()

	t.Run("first assignment for a role", func(t *testing.T) {
		m := activeMember(t, groupID)
		change, err := PlanRotation(m, groupID, RoleChair, nil, false)
		require.NoError(t, err)
		assert.Nil(t, change.ToClose)
		assert.Equal(t, m.ID, change.New.MemberID)
		assert.Equal(t, RoleChair, change.New.Role)
		assert.True(t, change.New.IsOpen())
	})

	t.Run("replacing a holder closes the previous assignment", func(t *testing.T) {
		previous := activeMember(t, groupID)
		next := activeMember(t, groupID)
		open := []OfficerAssignment{openAssignment(t, groupID, previous.ID, RoleTreasurer)}

		change, err := PlanRotation(next, groupID, RoleTreasurer, open, false)
		require.NoError(t, err)
		require.NotNil(t, change.ToClose)
		assert.Equal(t, previous.ID, change.ToClose.MemberID)
		assert.Equal(t, next.ID, change.New.MemberID)
	})

	t.Run("reassigning the current holder is rejected", func(t *testing.T) {
		m := activeMember(t, groupID)
		open := []OfficerAssignment{openAssignment(t, groupID, m.ID, RoleChair)}

		_, err := PlanRotation(m, groupID, RoleChair, open, false)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrAlreadyExists.Code, domainErr.Code)
	})

	t.Run("dual roles rejected by default", func(t *testing.T) {
		m := activeMember(t, groupID)
		open := []OfficerAssignment{openAssignment(t, groupID, m.ID, RoleChair)}

		_, err := PlanRotation(m, groupID, RoleSecretary, open, false)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrRoleConflict.Code, domainErr.Code)
	})

	t.Run("dual roles allowed by policy", func(t *testing.T) {
		m := activeMember(t, groupID)
		open := []OfficerAssignment{openAssignment(t, groupID, m.ID, RoleChair)}

		change, err := PlanRotation(m, groupID, RoleSecretary, open, true)
		require.NoError(t, err)
		assert.Nil(t, change.ToClose)
		assert.Equal(t, RoleSecretary, change.New.Role)
	})

	t.Run("exited member is rejected", func(t *testing.T) {
		m := activeMember(t, groupID)
		require.NoError(t, m.Exit())

		_, err := PlanRotation(m, groupID, RoleChair, nil, false)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrUnknownMember.Code, domainErr.Code)
	})

	t.Run("member of another group is rejected", func(t *testing.T) {
		m := activeMember(t, uuid.New())
		_, err := PlanRotation(m, groupID, RoleChair, nil, false)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrUnknownMember.Code, domainErr.Code)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		m := activeMember(t, groupID)
		_, err := PlanRotation(m, groupID, OfficerRole("auditor"), nil, false)
		assert.Error(t, err)
	})

	t.Run("closed assignments do not block rotation", func(t *testing.T) {
		former := activeMember(t, groupID)
		m := activeMember(t, groupID)
		closed := openAssignment(t, groupID, former.ID, RoleChair)
		closed.Close(time.Now())

		change, err := PlanRotation(m, groupID, RoleChair, []OfficerAssignment{closed}, false)
		require.NoError(t, err)
		assert.Nil(t, change.ToClose)
	})
}

func TestOfficerAssignmentClose(t *testing.T) {
	a := openAssignment(t, uuid.New(), uuid.New(), RoleChair)
	require.True(t, a.IsOpen())

	first := time.Now()
	a.Close(first)
	require.False(t, a.IsOpen())

	// closing again keeps the original end date
	a.Close(first.Add(time.Hour))
	assert.Equal(t, first, *a.EndDate)
}

func TestActiveRoster(t *testing.T) {
	groupID := uuid.New()
	chair := uuid.New()
	treasurer := uuid.New()

	former := openAssignment(t, groupID, uuid.New(), RoleSecretary)
	former.Close(time.Now())

	open := []OfficerAssignment{
		openAssignment(t, groupID, chair, RoleChair),
		openAssignment(t, groupID, treasurer, RoleTreasurer),
		former,
	}

	roster := ActiveRoster(open)
	assert.Len(t, roster, 2)
	assert.Equal(t, chair, roster[RoleChair])
	assert.Equal(t, treasurer, roster[RoleTreasurer])
	_, hasSecretary := roster[RoleSecretary]
	assert.False(t, hasSecretary)
}
