package governance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
)

// Coordinator serializes writes per group. Satisfied by
// coordination.GroupCoordinator.
type Coordinator interface {
	WithGroup(ctx context.Context, groupID uuid.UUID, fn func(ctx context.Context) error) error
}

// Config holds officer rotation policy
type Config struct {
	AllowDualRoles bool
}

// GovernanceService manages officer rotations and the roster. Rotations
// write under the group's exclusive section so two concurrent assignments
// to the same role cannot both observe the role as vacant.
type GovernanceService struct {
	assignmentRepo governance.Repository
	groupRepo      group.Repository
	memberRepo     group.MemberRepository
	coordinator    Coordinator
	logger         *zap.Logger
	cfg            Config
}

// NewGovernanceService creates a new GovernanceService
func NewGovernanceService(
	assignmentRepo governance.Repository,
	groupRepo group.Repository,
	memberRepo group.MemberRepository,
	coordinator Coordinator,
	logger *zap.Logger,
	cfg Config,
) *GovernanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GovernanceService{
		assignmentRepo: assignmentRepo,
		groupRepo:      groupRepo,
		memberRepo:     memberRepo,
		coordinator:    coordinator,
		logger:         logger,
		cfg:            cfg,
	}
}

// AssignOfficer rotates a role to a new holder. The outgoing holder's
// assignment closes and the new one opens in a single database
// transaction; history rows are never deleted.
func (s *GovernanceService) AssignOfficer(ctx context.Context, groupID uuid.UUID, req AssignOfficerRequest) (*AssignmentResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, shared.ErrInvalidState.WithDetails("group %s is dissolved", groupID)
	}

	m, err := s.memberRepo.FindByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}

	var assigned *governance.OfficerAssignment
	err = s.coordinator.WithGroup(ctx, groupID, func(ctx context.Context) error {
		open, err := s.assignmentRepo.FindOpenByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		change, err := governance.PlanRotation(m, groupID, governance.OfficerRole(req.Role), open, s.cfg.AllowDualRoles)
		if err != nil {
			return err
		}
		if change.ToClose != nil {
			change.ToClose.Close(time.Now())
		}
		if err := s.assignmentRepo.Rotate(ctx, change); err != nil {
			return err
		}
		assigned = change.New
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keep the member's officer flag in step with the roster
	m.MarkOfficer()
	if err := s.memberRepo.Save(ctx, m); err != nil {
		s.logger.Warn("officer flag update failed",
			zap.String("member_id", m.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("officer assigned",
		zap.String("group_id", groupID.String()),
		zap.String("role", req.Role),
		zap.String("member_id", req.MemberID.String()))

	response := ToAssignmentResponse(assigned)
	return &response, nil
}

// GetRoster returns the current holder of each officer role
func (s *GovernanceService) GetRoster(ctx context.Context, groupID uuid.UUID) (*RosterResponse, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}
	open, err := s.assignmentRepo.FindOpenByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ToRosterResponse(groupID, open), nil
}

// History returns the full assignment history for a group, newest first
func (s *GovernanceService) History(ctx context.Context, groupID uuid.UUID) ([]AssignmentResponse, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}
	history, err := s.assignmentRepo.History(ctx, groupID)
	if err != nil {
		return nil, err
	}
	items := make([]AssignmentResponse, 0, len(history))
	for i := range history {
		items = append(items, ToAssignmentResponse(&history[i]))
	}
	return items, nil
}
