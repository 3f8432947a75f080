package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeEval           = "EVAL_ERROR"
	ErrCodeMissingInput   = "MISSING_INPUT"
	ErrCodeMalformedSplit = "MALFORMED_SPLIT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeCycleDetected  = "CYCLE_DETECTED"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInvalidEvent   = "INVALID_EVENT"
	ErrCodeCancelled      = "CANCELLED"
	ErrCodeStore          = "STORE_ERROR"
)

// Eval failure kinds, reported under the "kind" detail of an EVAL_ERROR.
const (
	EvalKindSyntax    = "syntax"
	EvalKindRuntime   = "runtime"
	EvalKindReference = "reference"
)

// BonsaiError is the structured error type for graph, sandbox and editor operations.
type BonsaiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *BonsaiError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *BonsaiError) Unwrap() error {
	return e.Cause
}

// NewError creates a new BonsaiError.
func NewError(code, message string) *BonsaiError {
	return &BonsaiError{Code: code, Message: message}
}

// NewErrorf creates a new BonsaiError with a formatted message.
func NewErrorf(code, format string, args ...any) *BonsaiError {
	return &BonsaiError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *BonsaiError) WithNode(nodeID string) *BonsaiError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *BonsaiError) WithCause(err error) *BonsaiError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details. Existing keys are overwritten.
func (e *BonsaiError) WithDetails(details map[string]any) *BonsaiError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Kind returns the "kind" detail, or "" when absent.
func (e *BonsaiError) Kind() string {
	k, _ := e.Details["kind"].(string)
	return k
}

// HasCode reports whether err is (or wraps) a BonsaiError with the given code.
func HasCode(err error, code string) bool {
	var be *BonsaiError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// AsBonsaiError converts any error into a BonsaiError. Errors that already are
// BonsaiErrors are returned as-is; others are wrapped under fallbackCode.
func AsBonsaiError(err error, fallbackCode string) *BonsaiError {
	if err == nil {
		return nil
	}
	var be *BonsaiError
	if errors.As(err, &be) {
		return be
	}
	return NewError(fallbackCode, err.Error()).WithCause(err)
}
