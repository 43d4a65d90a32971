package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Timetable domain errors.
var (
	ErrInvalidDayOfWeek      = New("INVALID_DAY_OF_WEEK", http.StatusBadRequest, "day is not a teaching day")
	ErrInvalidPeriodNumber   = New("INVALID_PERIOD_NUMBER", http.StatusBadRequest, "period number out of range")
	ErrMinimumPeriodDuration = New("MINIMUM_PERIOD_DURATION", http.StatusBadRequest, "period is shorter than the minimum duration")
	ErrInvalidRoomNumber     = New("INVALID_ROOM_NUMBER", http.StatusBadRequest, "invalid room number")
	ErrInvalidSection        = New("INVALID_SECTION", http.StatusNotFound, "section not found")
	ErrInvalidSubject        = New("INVALID_SUBJECT", http.StatusUnprocessableEntity, "subject is not mapped to section")
	ErrTeacherNotAssigned    = New("TEACHER_NOT_ASSIGNED", http.StatusUnprocessableEntity, "subject has no teacher assigned")
	ErrTimeTableConflict     = New("TIMETABLE_CONFLICT", http.StatusConflict, "timetable slot is occupied")
	ErrEntryCancelled        = New("TIMETABLE_ENTRY_CANCELLED", http.StatusConflict, "timetable entry is cancelled")
)

// WithDetails attaches a machine-readable payload rendered next to the message.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
