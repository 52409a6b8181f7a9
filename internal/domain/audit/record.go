package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
)

// ChecklistState tracks progress through the audit checklist
type ChecklistState string

const (
	StateNotStarted ChecklistState = "not_started"
	StateInProgress ChecklistState = "in_progress"
	StateCompleted  ChecklistState = "completed"
)

// Well-known checklist steps. StepReconcileLedger is special-cased by the
// audit service: it passes only when the ledger's conservation identity
// holds against a fresh replay.
const (
	StepVerifyCashbook  = "verify_cashbook"
	StepVerifyPassbooks = "verify_passbooks"
	StepReconcileLedger = "reconcile_ledger"
	StepReviewLoanBook  = "review_loan_book"
)

// DefaultChecklist is the ordered audit checklist. The order is the
// contract: step N+1 cannot complete before step N.
var DefaultChecklist = []string{
	StepVerifyCashbook,
	StepVerifyPassbooks,
	StepReconcileLedger,
	StepReviewLoanBook,
}

// CompletedSteps is stored as JSONB alongside the audit record
type CompletedSteps []string

// Value implements driver.Valuer for JSONB storage
func (s CompletedSteps) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB retrieval
func (s *CompletedSteps) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CompletedSteps", value)
	}
	return json.Unmarshal(data, s)
}

// AuditRecord tracks one audit pass over a group. Steps complete strictly
// in checklist order.
type AuditRecord struct {
	shared.GroupAggregateRoot
	ChecklistState ChecklistState
	Checklist      []string
	CompletedSteps CompletedSteps
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewAuditRecord opens a new audit for a group using the given checklist
func NewAuditRecord(groupID uuid.UUID, checklist []string) (*AuditRecord, error) {
	if groupID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithDetails("group id is required")
	}
	if len(checklist) == 0 {
		checklist = DefaultChecklist
	}
	return &AuditRecord{
		GroupAggregateRoot: shared.NewGroupAggregateRoot(groupID),
		ChecklistState:     StateNotStarted,
		Checklist:          checklist,
		CompletedSteps:     CompletedSteps{},
	}, nil
}

// NextStep returns the step that must be completed next, empty when the
// checklist is done.
func (r *AuditRecord) NextStep() string {
	if len(r.CompletedSteps) >= len(r.Checklist) {
		return ""
	}
	return r.Checklist[len(r.CompletedSteps)]
}

// HasStep reports whether the step belongs to this audit's checklist
func (r *AuditRecord) HasStep(step string) bool {
	for _, s := range r.Checklist {
		if s == step {
			return true
		}
	}
	return false
}

// CompleteStep completes the named step. Only the next step in checklist
// order is accepted; anything else fails with AuditStepOutOfOrder.
// Completing the final step closes the audit.
func (r *AuditRecord) CompleteStep(step string) error {
	if r.ChecklistState == StateCompleted {
		return shared.ErrInvalidState.WithDetails("audit is already completed")
	}
	if !r.HasStep(step) {
		return shared.ErrNotFound.WithDetails("step %q is not on the checklist", step)
	}
	if next := r.NextStep(); step != next {
		return shared.ErrAuditStepOutOfOrder.WithDetails("expected step %q, got %q", next, step)
	}

	now := time.Now()
	if r.ChecklistState == StateNotStarted {
		r.ChecklistState = StateInProgress
		r.StartedAt = &now
	}
	r.CompletedSteps = append(r.CompletedSteps, step)

	if len(r.CompletedSteps) == len(r.Checklist) {
		r.ChecklistState = StateCompleted
		r.CompletedAt = &now
		r.AddDomainEvent(NewAuditCompletedEvent(r))
	}
	r.IncrementVersion()
	return nil
}
