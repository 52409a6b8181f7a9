package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/persistence/models"
)

// GormOfficerAssignmentRepository implements governance.Repository using GORM
type GormOfficerAssignmentRepository struct {
	db *gorm.DB
}

// NewGormOfficerAssignmentRepository creates a new GormOfficerAssignmentRepository
func NewGormOfficerAssignmentRepository(db *gorm.DB) *GormOfficerAssignmentRepository {
	return &GormOfficerAssignmentRepository{db: db}
}

// Rotate closes the outgoing assignment and inserts the new one in a
// single database transaction, so the role never has zero or two holders
// between the two writes.
func (r *GormOfficerAssignmentRepository) Rotate(ctx context.Context, change *governance.RotationChange) error {
	return r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if change.ToClose != nil {
			closed := models.OfficerAssignmentModelFromDomain(change.ToClose)
			result := dbTx.Model(&models.OfficerAssignmentModel{}).
				Where("id = ? AND end_date IS NULL", closed.ID).
				Updates(map[string]interface{}{
					"end_date":   closed.EndDate,
					"updated_at": closed.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.ErrConcurrentModification.WithDetails(
					"assignment %s was already closed", closed.ID)
			}
		}

		model := models.OfficerAssignmentModelFromDomain(change.New)
		if err := dbTx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrConcurrentModification.WithDetails(
					"role %s in group %s was rotated concurrently", change.New.Role, change.New.GroupID)
			}
			return err
		}
		return nil
	})
}

// FindOpenByGroup returns all open assignments for a group
func (r *GormOfficerAssignmentRepository) FindOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]governance.OfficerAssignment, error) {
	var assignmentModels []models.OfficerAssignmentModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND end_date IS NULL", groupID).
		Order("start_date asc").
		Find(&assignmentModels).Error; err != nil {
		return nil, err
	}
	return toDomainAssignments(assignmentModels), nil
}

// History returns the full assignment history for a group, newest first
func (r *GormOfficerAssignmentRepository) History(ctx context.Context, groupID uuid.UUID) ([]governance.OfficerAssignment, error) {
	var assignmentModels []models.OfficerAssignmentModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("start_date desc").
		Find(&assignmentModels).Error; err != nil {
		return nil, err
	}
	return toDomainAssignments(assignmentModels), nil
}

func toDomainAssignments(assignmentModels []models.OfficerAssignmentModel) []governance.OfficerAssignment {
	assignments := make([]governance.OfficerAssignment, len(assignmentModels))
	for i, model := range assignmentModels {
		assignments[i] = *model.ToDomain()
	}
	return assignments
}

// Ensure GormOfficerAssignmentRepository implements governance.Repository
var _ governance.Repository = (*GormOfficerAssignmentRepository)(nil)
