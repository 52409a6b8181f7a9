package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error carrying request-specific details.
// The shared error values stay immutable.
func (e *DomainError) WithDetails(format string, args ...interface{}) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: fmt.Sprintf(format, args...),
	}
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists         = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput          = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState          = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInvalidAmount         = NewDomainError("INVALID_AMOUNT", "Amount must be a positive value with at most two decimal places")
	ErrUnknownMember         = NewDomainError("UNKNOWN_MEMBER", "Member does not belong to this group or is not active")
	ErrInsufficientBalance   = NewDomainError("INSUFFICIENT_BALANCE", "Insufficient savings balance for withdrawal")
	ErrNoSuchLoan            = NewDomainError("NO_SUCH_LOAN", "Loan reference does not match a loan in this group")
	ErrLoanAlreadyClosed     = NewDomainError("LOAN_ALREADY_CLOSED", "Loan is closed and accepts no further repayments")
	ErrRoleConflict          = NewDomainError("ROLE_CONFLICT", "Member already holds another active officer role")
	ErrAuditStepOutOfOrder   = NewDomainError("AUDIT_STEP_OUT_OF_ORDER", "Audit checklist steps must be completed in order")
	ErrConcurrentModification = NewDomainError("CONCURRENT_MODIFICATION", "Group ledger was modified by another process")
	ErrStorageUnavailable    = NewDomainError("STORAGE_UNAVAILABLE", "Backing storage is unavailable")
)
