package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vsla/backend/internal/domain/audit"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/persistence/models"
)

// GormAuditRecordRepository implements audit.Repository using GORM
type GormAuditRecordRepository struct {
	db *gorm.DB
}

// NewGormAuditRecordRepository creates a new GormAuditRecordRepository
func NewGormAuditRecordRepository(db *gorm.DB) *GormAuditRecordRepository {
	return &GormAuditRecordRepository{db: db}
}

// Create inserts a new audit record
func (r *GormAuditRecordRepository) Create(ctx context.Context, rec *audit.AuditRecord) error {
	model := models.AuditRecordModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithDetails("audit record %s already exists", rec.ID)
		}
		return err
	}
	return nil
}

// Save persists audit progress with an optimistic version check
func (r *GormAuditRecordRepository) Save(ctx context.Context, rec *audit.AuditRecord) error {
	model := models.AuditRecordModelFromDomain(rec)
	result := r.db.WithContext(ctx).
		Model(&models.AuditRecordModel{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version-1).
		Updates(map[string]interface{}{
			"checklist_state": model.ChecklistState,
			"completed_steps": model.CompletedSteps,
			"started_at":      model.StartedAt,
			"completed_at":    model.CompletedAt,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification.WithDetails("audit record %s was modified concurrently", rec.ID)
	}
	return nil
}

// FindByID finds an audit record by its ID
func (r *GormAuditRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*audit.AuditRecord, error) {
	var model models.AuditRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCurrentByGroup returns the group's latest audit record, nil when
// the group has never been audited
func (r *GormAuditRecordRepository) FindCurrentByGroup(ctx context.Context, groupID uuid.UUID) (*audit.AuditRecord, error) {
	var model models.AuditRecordModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at desc").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormAuditRecordRepository implements audit.Repository
var _ audit.Repository = (*GormAuditRecordRepository)(nil)
