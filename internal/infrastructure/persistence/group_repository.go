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

// GormGroupRepository implements group.Repository using GORM
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GormGroupRepository
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

// Create inserts a new group
func (r *GormGroupRepository) Create(ctx context.Context, g *group.Group) error {
	model := models.GroupModelFromDomain(g)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithDetails("group %s already exists", g.ID)
		}
		return err
	}
	return nil
}

// FindByID finds a group by its ID
func (r *GormGroupRepository) FindByID(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	var model models.GroupModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds all groups matching the filter
func (r *GormGroupRepository) FindAll(ctx context.Context, filter shared.Filter) ([]group.Group, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.GroupModel{})

	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if cohortID, ok := filter.Filters["cohort_id"]; ok {
		query = query.Where("cohort_id = ?", cohortID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var groupModels []models.GroupModel
	if err := applyPaging(query, filter, GroupSortFields).Find(&groupModels).Error; err != nil {
		return nil, 0, err
	}

	groups := make([]group.Group, len(groupModels))
	for i, model := range groupModels {
		groups[i] = *model.ToDomain()
	}
	return groups, total, nil
}

// Save persists the group's mutable fields with an optimistic version
// check. Seed capital is excluded; it is fixed at creation.
func (r *GormGroupRepository) Save(ctx context.Context, g *group.Group) error {
	result := r.db.WithContext(ctx).
		Model(&models.GroupModel{}).
		Where("id = ? AND version = ?", g.ID, g.Version-1).
		Updates(map[string]interface{}{
			"name":       g.Name,
			"status":     g.Status,
			"version":    g.Version,
			"updated_at": g.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification.WithDetails("group %s was modified concurrently", g.ID)
	}
	return nil
}

// Ensure GormGroupRepository implements group.Repository
var _ group.Repository = (*GormGroupRepository)(nil)

// applyPaging applies ordering and pagination from a filter. The sort
// field is validated against a whitelist before it reaches the query.
func applyPaging(query *gorm.DB, filter shared.Filter, allowedSortFields map[string]bool) *gorm.DB {
	orderBy := ValidateSortField(filter.OrderBy, allowedSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}
