package group

import (
	"context"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// GroupService handles savings group and membership operations
type GroupService struct {
	groupRepo       group.Repository
	memberRepo      group.MemberRepository
	eventPublisher  shared.EventPublisher
	defaultCurrency valueobject.Currency
}

// NewGroupService creates a new GroupService
func NewGroupService(groupRepo group.Repository, memberRepo group.MemberRepository, defaultCurrency string) *GroupService {
	currency := valueobject.Currency(defaultCurrency)
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &GroupService{
		groupRepo:       groupRepo,
		memberRepo:      memberRepo,
		defaultCurrency: currency,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *GroupService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *GroupService) publishDomainEvents(ctx context.Context, root shared.AggregateRoot) {
	if s.eventPublisher == nil {
		return
	}
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	root.ClearDomainEvents()
}

// Create registers a new savings group with its immutable seed capital
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*GroupResponse, error) {
	currency := s.defaultCurrency
	if req.Currency != "" {
		currency = valueobject.Currency(req.Currency)
	}

	seed := valueobject.Zero(currency)
	if req.SeedCapital != "" {
		var err error
		seed, err = valueobject.NewMoneyFromString(req.SeedCapital, currency)
		if err != nil {
			return nil, shared.ErrInvalidAmount.WithDetails("seed capital: %v", err)
		}
	}

	g, err := group.NewGroup(req.Name, req.CohortID, seed)
	if err != nil {
		return nil, err
	}
	if err := s.groupRepo.Create(ctx, g); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, g)

	response := ToGroupResponse(g)
	return &response, nil
}

// GetByID retrieves a savings group
func (s *GroupService) GetByID(ctx context.Context, groupID uuid.UUID) (*GroupResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	response := ToGroupResponse(g)
	return &response, nil
}

// List retrieves groups with filtering and pagination
func (s *GroupService) List(ctx context.Context, filter GroupListFilter) (*shared.Paginated[GroupResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}
	if filter.CohortID != nil {
		f.Filters["cohort_id"] = *filter.CohortID
	}

	groups, total, err := s.groupRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}

	items := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		items = append(items, ToGroupResponse(&groups[i]))
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Rename updates the group display name
func (s *GroupService) Rename(ctx context.Context, groupID uuid.UUID, req RenameGroupRequest) (*GroupResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := g.Rename(req.Name); err != nil {
		return nil, err
	}
	if err := s.groupRepo.Save(ctx, g); err != nil {
		return nil, err
	}
	response := ToGroupResponse(g)
	return &response, nil
}

// Dissolve marks the group dissolved. Its ledger stays readable but
// rejects further writes.
func (s *GroupService) Dissolve(ctx context.Context, groupID uuid.UUID) (*GroupResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := g.Dissolve(); err != nil {
		return nil, err
	}
	if err := s.groupRepo.Save(ctx, g); err != nil {
		return nil, err
	}
	response := ToGroupResponse(g)
	return &response, nil
}

// RegisterMember adds a member to an active group
func (s *GroupService) RegisterMember(ctx context.Context, groupID uuid.UUID, req RegisterMemberRequest) (*MemberResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, shared.ErrInvalidState.WithDetails("group %s is dissolved", groupID)
	}

	m, err := group.NewMember(groupID, req.Name, req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, group.NewMemberRegisteredEvent(m))
	}

	response := ToMemberResponse(m)
	return &response, nil
}

// ListMembers returns all members of a group
func (s *GroupService) ListMembers(ctx context.Context, groupID uuid.UUID) ([]MemberResponse, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.memberRepo.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	items := make([]MemberResponse, 0, len(members))
	for i := range members {
		items = append(items, ToMemberResponse(&members[i]))
	}
	return items, nil
}

// ExitMember marks a member as having left their group
func (s *GroupService) ExitMember(ctx context.Context, groupID, memberID uuid.UUID) (*MemberResponse, error) {
	m, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !m.BelongsTo(groupID) {
		return nil, shared.ErrUnknownMember.WithDetails("member %s does not belong to group %s", memberID, groupID)
	}
	if err := m.Exit(); err != nil {
		return nil, err
	}
	if err := s.memberRepo.Save(ctx, m); err != nil {
		return nil, err
	}
	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, group.NewMemberExitedEvent(m))
	}

	response := ToMemberResponse(m)
	return &response, nil
}
