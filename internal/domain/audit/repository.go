package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores audit records
type Repository interface {
	Create(ctx context.Context, r *AuditRecord) error
	// Save persists progress with an optimistic version check and
	// surfaces shared.ErrConcurrentModification on a stale write.
	Save(ctx context.Context, r *AuditRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*AuditRecord, error)
	// FindCurrentByGroup returns the group's latest audit record, nil
	// when the group has never been audited.
	FindCurrentByGroup(ctx context.Context, groupID uuid.UUID) (*AuditRecord, error)
}
