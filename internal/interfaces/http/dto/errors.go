package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeStorageUnavailable is used when the backing store is unreachable
	ErrCodeStorageUnavailable = "ERR_STORAGE_UNAVAILABLE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrentModification is used when an optimistic write loses
	ErrCodeConcurrentModification = "ERR_CONCURRENT_MODIFICATION"
)

// Ledger and loan error codes
const (
	// ErrCodeInvalidAmount is used for non-positive or over-precise amounts
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
	// ErrCodeUnknownMember is used when a member is absent or inactive
	ErrCodeUnknownMember = "ERR_UNKNOWN_MEMBER"
	// ErrCodeInsufficientBalance is used when a withdrawal or outflow
	// exceeds the available balance
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
	// ErrCodeNoSuchLoan is used when a loan reference does not resolve
	ErrCodeNoSuchLoan = "ERR_NO_SUCH_LOAN"
	// ErrCodeLoanAlreadyClosed is used for repayments against closed loans
	ErrCodeLoanAlreadyClosed = "ERR_LOAN_ALREADY_CLOSED"
)

// Governance and audit error codes
const (
	// ErrCodeRoleConflict is used when a member already holds another role
	ErrCodeRoleConflict = "ERR_ROLE_CONFLICT"
	// ErrCodeAuditStepOutOfOrder is used when checklist order is violated
	ErrCodeAuditStepOutOfOrder = "ERR_AUDIT_STEP_OUT_OF_ORDER"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeInvalidState is used when an operation is invalid for the
	// current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeStorageUnavailable: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeAlreadyExists:          http.StatusConflict,
	ErrCodeConflict:               http.StatusConflict,
	ErrCodeConcurrentModification: http.StatusConflict,

	// Ledger and loan errors. An insufficient balance is a bad request,
	// not a conflict: the projected balance rejected the intent.
	ErrCodeInvalidAmount:       http.StatusBadRequest,
	ErrCodeUnknownMember:       http.StatusBadRequest,
	ErrCodeInsufficientBalance: http.StatusBadRequest,
	ErrCodeNoSuchLoan:          http.StatusNotFound,
	ErrCodeLoanAlreadyClosed:   http.StatusConflict,

	// Governance and audit errors
	ErrCodeRoleConflict:        http.StatusConflict,
	ErrCodeAuditStepOutOfOrder: http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to wire error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"ALREADY_EXISTS":            ErrCodeAlreadyExists,
	"INVALID_INPUT":             ErrCodeInvalidInput,
	"INVALID_STATE":             ErrCodeInvalidState,
	"INVALID_AMOUNT":            ErrCodeInvalidAmount,
	"UNKNOWN_MEMBER":            ErrCodeUnknownMember,
	"INSUFFICIENT_BALANCE":      ErrCodeInsufficientBalance,
	"NO_SUCH_LOAN":              ErrCodeNoSuchLoan,
	"LOAN_ALREADY_CLOSED":       ErrCodeLoanAlreadyClosed,
	"ROLE_CONFLICT":             ErrCodeRoleConflict,
	"AUDIT_STEP_OUT_OF_ORDER":   ErrCodeAuditStepOutOfOrder,
	"CONCURRENT_MODIFICATION":   ErrCodeConcurrentModification,
	"STORAGE_UNAVAILABLE":       ErrCodeStorageUnavailable,
	"VALIDATION_ERROR":          ErrCodeValidation,
	"BAD_REQUEST":               ErrCodeBadRequest,
	"INTERNAL_ERROR":            ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the wire format
// If the code is already in the wire format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if wireCode, ok := DomainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
