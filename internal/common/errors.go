package common

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
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

// Is matches the sentinel for e.Code, so errors.Is(err, ErrInvalidInput)
// holds whatever the cause.
func (e *AppError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// Error codes carried by AppError.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidState    = "INVALID_STATE"
	CodeAlreadyResolved = "ALREADY_RESOLVED"
	CodeConfig          = "CONFIG_ERROR"
	CodeDatabase        = "DATABASE_ERROR"
)

// Common application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrAlreadyResolved = errors.New("already resolved")
	ErrInternal        = errors.New("internal error")
	ErrDatabase        = errors.New("database error")
	ErrValidation      = errors.New("validation failed")
	ErrQueueClosed     = errors.New("queue is shutting down")

	ErrConversion  = errors.New("page conversion failed")
	ErrRecognition = errors.New("text recognition failed")
)

var codeSentinels = map[string]error{
	CodeNotFound:        ErrNotFound,
	CodeInvalidInput:    ErrInvalidInput,
	CodeInvalidState:    ErrInvalidState,
	CodeAlreadyResolved: ErrAlreadyResolved,
	CodeDatabase:        ErrDatabase,
}

// Error constructors
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

// NotFound reports a missing scan, result, mapping or patient.
func NotFound(kind string, id uuid.UUID) error {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s %s not found", kind, id), ErrNotFound)
}

// InvalidState reports a transition attempted from the wrong state.
func InvalidState(kind string, id uuid.UUID, current string) error {
	return NewAppError(CodeInvalidState, fmt.Sprintf("%s %s is %s", kind, id, current), ErrInvalidState)
}

// AlreadyResolved reports a resolution attempted on a result that left pending.
func AlreadyResolved(id uuid.UUID, current string) error {
	return NewAppError(CodeAlreadyResolved, fmt.Sprintf("ocr result %s already resolved as %s", id, current), ErrAlreadyResolved)
}

// InvalidInput reports a rejected request argument.
func InvalidInput(message string, cause error) error {
	if cause == nil {
		cause = ErrInvalidInput
	}
	return NewAppError(CodeInvalidInput, message, cause)
}

// ConversionError is a rasterization or page image failure.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion %s: %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// RecognitionError is an engine failure on one page (1-based).
type RecognitionError struct {
	Page int
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("recognition page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("recognition: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) Is(target error) bool { return target == ErrRecognition }
