package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried by AppError.
const (
	CodeMalformedFieldSpec  = "MALFORMED_FIELD_SPEC"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeDocumentUnreadable  = "DOCUMENT_UNREADABLE"
	CodeModelUnavailable    = "MODEL_UNAVAILABLE"
	CodeModelTimeout        = "MODEL_TIMEOUT"
	CodeConfig              = "CONFIG_ERROR"
)

// Pipeline error taxonomy. Components wrap these; the orchestrator classifies with errors.Is.
var (
	ErrMalformedFieldSpec  = errors.New("malformed field spec")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrDocumentUnreadable  = errors.New("document unreadable")
	ErrModelUnavailable    = errors.New("model unavailable")
	ErrModelTimeout        = errors.New("model timeout")
	ErrInvalidInput        = errors.New("invalid input")
)

// NewAppError builds an AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// MalformedFieldSpec returns an error matching ErrMalformedFieldSpec whose Message is detail.
func MalformedFieldSpec(detail string) error {
	return NewAppError(CodeMalformedFieldSpec, detail, ErrMalformedFieldSpec)
}

// UnsupportedFileType returns an error matching ErrUnsupportedFileType.
func UnsupportedFileType(detail string) error {
	return NewAppError(CodeUnsupportedFileType, detail, ErrUnsupportedFileType)
}

// DocumentUnreadable wraps a structural read failure.
func DocumentUnreadable(detail string, cause error) error {
	return NewAppError(CodeDocumentUnreadable, detail, errors.Join(ErrDocumentUnreadable, cause))
}

// ModelUnavailable wraps a transport, auth or protocol failure of the model call.
func ModelUnavailable(detail string, cause error) error {
	return NewAppError(CodeModelUnavailable, detail, errors.Join(ErrModelUnavailable, cause))
}

// ModelTimeout wraps a deadline or cancellation of the model call.
func ModelTimeout(detail string, cause error) error {
	return NewAppError(CodeModelTimeout, detail, errors.Join(ErrModelTimeout, cause))
}

// Detail returns the human readable part of err: the AppError message when err is one, else err.Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
