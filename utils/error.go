package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Workflow error codes. Handlers map them onto HTTP statuses.
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeValidation = "VALIDATION"
	ErrCodeBlocked    = "BLOCKED"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeIntegrity  = "INTEGRITY"
)

// WorkflowError carries a machine-readable code alongside the message so the
// HTTP layer and the link-audit CLI can branch without string matching.
type WorkflowError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *WorkflowError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *WorkflowError {
	return &WorkflowError{Code: ErrCodeNotFound, Message: message}
}

func NewValidationError(field, message string) *WorkflowError {
	return &WorkflowError{Code: ErrCodeValidation, Field: field, Message: message}
}

func NewBlockedError(message string) *WorkflowError {
	return &WorkflowError{Code: ErrCodeBlocked, Message: message}
}

func NewConflictError(message string) *WorkflowError {
	return &WorkflowError{Code: ErrCodeConflict, Message: message}
}

func NewIntegrityError(message string) *WorkflowError {
	return &WorkflowError{Code: ErrCodeIntegrity, Message: message}
}

// ErrorCode extracts the workflow code from err, defaulting to INTEGRITY for
// plain errors and NOT_FOUND for the record-not-found sentinel.
func ErrorCode(err error) string {
	var wErr *WorkflowError
	if errors.As(err, &wErr) {
		return wErr.Code
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeIntegrity
}
