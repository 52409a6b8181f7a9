package audit

import (
	"github.com/vsla/backend/internal/domain/shared"
)

// Event types for the audit domain
const (
	EventTypeAuditCompleted = "audit.completed"
)

// AuditCompletedEvent is raised when every checklist step has completed
type AuditCompletedEvent struct {
	shared.BaseDomainEvent
	Steps []string `json:"steps"`
}

// NewAuditCompletedEvent creates an audit completed event
func NewAuditCompletedEvent(r *AuditRecord) *AuditCompletedEvent {
	return &AuditCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuditCompleted, "AuditRecord", r.ID, r.GroupID),
		Steps:           append([]string(nil), r.CompletedSteps...),
	}
}
