package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrUnsupportedFileType     = errors.New("unsupported file type")
	ErrDocumentTooLarge        = errors.New("document too large")
	ErrValidation              = errors.New("validation failed")
	ErrInvalidTransition       = errors.New("invalid workflow transition")
	ErrExtractionFailed        = errors.New("extraction failed")
	ErrAnalysisFailed          = errors.New("analysis failed")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionClosed           = errors.New("session closed")
	ErrSessionLimit            = errors.New("session limit reached")
	ErrResultNotReady          = errors.New("result not ready")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrTemporary               = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError is local to a single metric field.
type ValidationError struct {
	Field  MetricField `json:"field"`
	Reason string      `json:"reason"`
}

func NewValidationError(field MetricField, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

const (
	ReasonNotANumber    = "not a number"
	ReasonInvalidOption = "invalid option"
	ReasonOutOfRange    = "out of range"
	ReasonUnknownField  = "unknown field"
)
