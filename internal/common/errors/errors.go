// Package errors provides standardized error handling for search models and the
// BPMN workflow integration of the search workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Raised while compiling request parameters against a rule schema.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Raised by the search engine gateway.
	ErrCodeIndexNotFound         ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeSearchExecutionFailed ErrorCode = "SEARCH_EXECUTION_FAILED"
	ErrCodeSearchTimeout         ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexOperationFailed  ErrorCode = "INDEX_OPERATION_FAILED"

	// Raised while resolving model definitions.
	ErrCodeModelNotFound          ErrorCode = "MODEL_NOT_FOUND"
	ErrCodeInvalidModelDefinition ErrorCode = "INVALID_MODEL_DEFINITION"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError reports a malformed input parameter for a declared rule.
func NewValidationError(key, kind, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("invalid value for %s rule, key %q", kind, key),
		Details:   details,
		Retryable: false,
		Metadata: map[string]interface{}{
			"key":  key,
			"kind": kind,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Elasticsearch index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Metadata:  map[string]interface{}{"index": indexName},
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchExecutionError wraps a failure surfaced by the engine during search or count.
// The cause message is kept verbatim in Details.
func NewSearchExecutionError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchExecutionFailed,
		Message:   fmt.Sprintf("Elasticsearch %s failed", operation),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch request timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewIndexOperationError wraps index lifecycle and document write failures.
func NewIndexOperationError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexOperationFailed,
		Message:   fmt.Sprintf("Elasticsearch %s failed", operation),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewModelNotFoundError creates a non-retryable unknown model error.
func NewModelNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelNotFound,
		Message:   "Search model not found in registry",
		Details:   fmt.Sprintf("model: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidModelDefinitionError reports a model definition that failed schema checks.
func NewInvalidModelDefinitionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidModelDefinition,
		Message:   "Invalid search model definition",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports job input that could not be decoded.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:       "VALIDATION_FAILED",
	ErrCodeIndexNotFound:          "INDEX_NOT_FOUND",
	ErrCodeSearchExecutionFailed:  "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:          "SEARCH_TIMEOUT",
	ErrCodeIndexOperationFailed:   "INDEX_OPERATION_FAILED",
	ErrCodeModelNotFound:          "MODEL_NOT_FOUND",
	ErrCodeInvalidModelDefinition: "INVALID_MODEL_DEFINITION",
	ErrCodeInvalidInput:           "INVALID_INPUT",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSearchExecutionFailed,
		ErrCodeIndexOperationFailed:
		return 3

	case ErrCodeSearchTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INDEX") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "MODEL"):
		return "MODEL"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
