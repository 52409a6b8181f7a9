package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/persistence/models"
)

// GormLoanRepository implements loan.Repository using GORM
type GormLoanRepository struct {
	db *gorm.DB
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// Create inserts a new loan
func (r *GormLoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	model := models.LoanModelFromDomain(l)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithDetails("loan %s already exists", l.ID)
		}
		return err
	}
	return nil
}

// Save persists mutable loan state with an optimistic version check
func (r *GormLoanRepository) Save(ctx context.Context, l *loan.Loan) error {
	model := models.LoanModelFromDomain(l)
	result := conn(ctx, r.db).
		Model(&models.LoanModel{}).
		Where("id = ? AND version = ?", l.ID, l.Version-1).
		Updates(map[string]interface{}{
			"repayments":    model.Repayments,
			"repaid_amount": model.RepaidAmount,
			"state":         model.State,
			"closed_at":     model.ClosedAt,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification.WithDetails("loan %s was modified concurrently", l.ID)
	}
	return nil
}

// FindByID finds a loan by its ID (the disbursement transaction ID)
func (r *GormLoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	var model models.LoanModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNoSuchLoan.WithDetails("loan %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByGroup returns all loans for a group, newest first
func (r *GormLoanRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]loan.Loan, error) {
	var loanModels []models.LoanModel
	if err := conn(ctx, r.db).
		Where("group_id = ?", groupID).
		Order("disbursed_at desc").
		Find(&loanModels).Error; err != nil {
		return nil, err
	}
	return toDomainLoans(loanModels), nil
}

// ListOpen returns loans in a non-terminal state across all groups
func (r *GormLoanRepository) ListOpen(ctx context.Context) ([]loan.Loan, error) {
	var loanModels []models.LoanModel
	if err := conn(ctx, r.db).
		Where("state IN ?", []loan.LoanState{
			loan.StateDisbursed,
			loan.StatePartiallyRepaid,
			loan.StateOverdue,
		}).
		Order("due_date asc").
		Find(&loanModels).Error; err != nil {
		return nil, err
	}
	return toDomainLoans(loanModels), nil
}

// DeleteByGroup removes all loans for a group. Used only by the rebuild
// path before replaying the group's transaction log.
func (r *GormLoanRepository) DeleteByGroup(ctx context.Context, groupID uuid.UUID) error {
	return conn(ctx, r.db).
		Delete(&models.LoanModel{}, "group_id = ?", groupID).Error
}

func toDomainLoans(loanModels []models.LoanModel) []loan.Loan {
	loans := make([]loan.Loan, len(loanModels))
	for i, model := range loanModels {
		loans[i] = *model.ToDomain()
	}
	return loans
}

// Ensure GormLoanRepository implements loan.Repository
var _ loan.Repository = (*GormLoanRepository)(nil)
