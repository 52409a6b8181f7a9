package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/persistence/models"
)

// GormTransactionRepository implements ledger.TransactionRepository using
// GORM. It only ever inserts into ledger_transactions; the table has no
// update or delete path.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Append commits the transaction at the next sequence for its group.
// The group coordinator serializes writers in-process; the unique
// (group_id, sequence) index is the storage-level backstop. When a
// concurrent append from another instance wins the slot, the insert
// fails with a unique violation and the caller retries with a fresh
// projection.
func (r *GormTransactionRepository) Append(ctx context.Context, tx *ledger.Transaction) error {
	model := models.TransactionModelFromDomain(tx)

	err := conn(ctx, r.db).Transaction(func(dbTx *gorm.DB) error {
		var maxSeq int64
		if err := dbTx.Model(&models.TransactionModel{}).
			Where("group_id = ?", tx.GroupID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		model.Sequence = maxSeq + 1
		return dbTx.Create(model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrConcurrentModification.WithDetails(
				"sequence %d for group %s was taken by a concurrent append", model.Sequence, tx.GroupID)
		}
		return shared.ErrStorageUnavailable.WithDetails("ledger append failed: %v", err)
	}

	tx.Sequence = model.Sequence
	return nil
}

// FindByID loads a single transaction
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var model models.TransactionModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByGroup returns the full log for a group in sequence order.
// Projections replay this slice from the beginning.
func (r *GormTransactionRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Transaction, error) {
	var txModels []models.TransactionModel
	if err := conn(ctx, r.db).
		Where("group_id = ?", groupID).
		Order("sequence asc").
		Find(&txModels).Error; err != nil {
		return nil, err
	}

	txs := make([]ledger.Transaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, nil
}

// ListByGroupPaged returns a page of the log, newest first
func (r *GormTransactionRepository) ListByGroupPaged(ctx context.Context, groupID uuid.UUID, filter shared.Filter) ([]ledger.Transaction, int64, error) {
	query := conn(ctx, r.db).
		Model(&models.TransactionModel{}).
		Where("group_id = ?", groupID)

	if kind, ok := filter.Filters["kind"]; ok {
		query = query.Where("kind = ?", kind)
	}
	if memberID, ok := filter.Filters["member_id"]; ok {
		query = query.Where("member_id = ?", memberID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txModels []models.TransactionModel
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if err := query.
		Order("sequence desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txModels).Error; err != nil {
		return nil, 0, err
	}

	txs := make([]ledger.Transaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, total, nil
}

// MaxSequence returns the highest committed sequence for the group
func (r *GormTransactionRepository) MaxSequence(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var maxSeq int64
	if err := conn(ctx, r.db).
		Model(&models.TransactionModel{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	return maxSeq, nil
}

// Ensure GormTransactionRepository implements ledger.TransactionRepository
var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
