package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/persistence/models"
)

// GormMemberRepository implements group.MemberRepository using GORM
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// Create inserts a new member
func (r *GormMemberRepository) Create(ctx context.Context, m *group.Member) error {
	model := models.MemberModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithDetails("member %s already exists", m.ID)
		}
		return err
	}
	return nil
}

// FindByID finds a member by its ID
func (r *GormMemberRepository) FindByID(ctx context.Context, id uuid.UUID) (*group.Member, error) {
	var model models.MemberModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByGroup returns all members of a group ordered by join date
func (r *GormMemberRepository) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]group.Member, error) {
	var memberModels []models.MemberModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("joined_at asc").
		Find(&memberModels).Error; err != nil {
		return nil, err
	}

	members := make([]group.Member, len(memberModels))
	for i, model := range memberModels {
		members[i] = *model.ToDomain()
	}
	return members, nil
}

// Save updates a member
func (r *GormMemberRepository) Save(ctx context.Context, m *group.Member) error {
	model := models.MemberModelFromDomain(m)
	result := r.db.WithContext(ctx).
		Model(&models.MemberModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"name":       model.Name,
			"phone":      model.Phone,
			"role":       model.Role,
			"status":     model.Status,
			"exited_at":  model.ExitedAt,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormMemberRepository implements group.MemberRepository
var _ group.MemberRepository = (*GormMemberRepository)(nil)
