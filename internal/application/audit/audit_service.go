package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/audit"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
)

// Config holds the audit checklist policy
type Config struct {
	Checklist []string
}

// LedgerReconciler re-checks the ledger's conservation identity against a
// fresh replay. Satisfied by ledger.LedgerService.
type LedgerReconciler interface {
	Reconcile(ctx context.Context, groupID uuid.UUID) error
}

// AuditService runs the periodic audit checklist over groups. Steps
// complete strictly in checklist order; concurrent completions are caught
// by the record's optimistic version check.
type AuditService struct {
	auditRepo      audit.Repository
	groupRepo      group.Repository
	reconciler     LedgerReconciler
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	cfg            Config
}

// NewAuditService creates a new AuditService. A nil reconciler skips the
// ledger check on the reconciliation step.
func NewAuditService(auditRepo audit.Repository, groupRepo group.Repository, reconciler LedgerReconciler, logger *zap.Logger, cfg Config) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		auditRepo:  auditRepo,
		groupRepo:  groupRepo,
		reconciler: reconciler,
		logger:     logger,
		cfg:        cfg,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AuditService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Start opens a new audit for a group. A group can carry only one audit
// in progress at a time.
func (s *AuditService) Start(ctx context.Context, groupID uuid.UUID) (*AuditResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, shared.ErrInvalidState.WithDetails("group %s is dissolved", groupID)
	}

	current, err := s.auditRepo.FindCurrentByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.ChecklistState != audit.StateCompleted {
		return nil, shared.ErrInvalidState.WithDetails("group %s already has an audit in progress", groupID)
	}

	record, err := audit.NewAuditRecord(groupID, s.cfg.Checklist)
	if err != nil {
		return nil, err
	}
	if err := s.auditRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("audit started",
		zap.String("group_id", groupID.String()),
		zap.String("audit_id", record.ID.String()))

	response := ToAuditResponse(record)
	return &response, nil
}

// CompleteStep completes the next step of the group's current audit
func (s *AuditService) CompleteStep(ctx context.Context, groupID uuid.UUID, req CompleteStepRequest) (*AuditResponse, error) {
	record, err := s.auditRepo.FindCurrentByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, shared.ErrNotFound.WithDetails("group %s has no audit", groupID)
	}

	if req.Step == audit.StepReconcileLedger && s.reconciler != nil {
		if err := s.reconciler.Reconcile(ctx, groupID); err != nil {
			s.logger.Warn("ledger reconciliation failed, refusing step",
				zap.String("group_id", groupID.String()),
				zap.String("audit_id", record.ID.String()),
				zap.Error(err))
			return nil, err
		}
	}

	if err := record.CompleteStep(req.Step); err != nil {
		return nil, err
	}
	if err := s.auditRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	if record.ChecklistState == audit.StateCompleted {
		if s.eventPublisher != nil {
			_ = s.eventPublisher.Publish(ctx, record.GetDomainEvents()...)
		}
		record.ClearDomainEvents()
		s.logger.Info("audit completed",
			zap.String("group_id", groupID.String()),
			zap.String("audit_id", record.ID.String()))
	}

	response := ToAuditResponse(record)
	return &response, nil
}

// GetCurrent returns the group's latest audit, nil when the group has
// never been audited.
func (s *AuditService) GetCurrent(ctx context.Context, groupID uuid.UUID) (*AuditResponse, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}
	record, err := s.auditRepo.FindCurrentByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, shared.ErrNotFound.WithDetails("group %s has never been audited", groupID)
	}
	response := ToAuditResponse(record)
	return &response, nil
}

// AuditResponse represents an audit record in API responses
type AuditResponse struct {
	ID             uuid.UUID  `json:"id"`
	GroupID        uuid.UUID  `json:"group_id"`
	State          string     `json:"state"`
	Checklist      []string   `json:"checklist"`
	CompletedSteps []string   `json:"completed_steps"`
	NextStep       string     `json:"next_step,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Version        int        `json:"version"`
}

// CompleteStepRequest represents a request to complete a checklist step
type CompleteStepRequest struct {
	Step string `json:"step" binding:"required"`
}

// ToAuditResponse converts an audit record to its API representation
func ToAuditResponse(r *audit.AuditRecord) AuditResponse {
	return AuditResponse{
		ID:             r.ID,
		GroupID:        r.GroupID,
		State:          string(r.ChecklistState),
		Checklist:      r.Checklist,
		CompletedSteps: r.CompletedSteps,
		NextStep:       r.NextStep(),
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Version:        r.Version,
	}
}
