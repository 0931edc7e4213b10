package db

import (
	"errors"
	"fmt"
)

// Error kinds returned by the backend boundary. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyRegistered = errors.New("already registered for this mission")
	ErrMissionFull       = errors.New("mission has no spots left")
	ErrMissionClosed     = errors.New("mission is not open for registration")
	ErrInvalidTransition = errors.New("invalid registration status transition")
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
)

// SQLSTATE codes raised by the mission procedures. Standard codes cover the rest.
const (
	CodeMissionFull       = "VS001"
	CodeInvalidTransition = "VS002"
	CodeMissionClosed     = "VS003"
	CodeUniqueViolation   = "23505"
	CodeCheckViolation    = "23514"
	CodeNoDataFound       = "P0002"
	CodeInsufficientPriv  = "42501"
	CodePostgRESTNoRows   = "PGRST116"
	CodeJWTExpired        = "PGRST301"
)

// BackendError carries the backend's message together with a structured kind
type BackendError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
	Kind    error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// Unwrap exposes the kind so errors.Is(err, ErrMissionFull) works
func (e *BackendError) Unwrap() error {
	return e.Kind
}

// KindForCode maps a SQLSTATE / PostgREST code to an error kind (nil if unknown)
func KindForCode(code string) error {
	switch code {
	case CodeMissionFull:
		return ErrMissionFull
	case CodeInvalidTransition:
		return ErrInvalidTransition
	case CodeMissionClosed:
		return ErrMissionClosed
	case CodeUniqueViolation:
		return ErrAlreadyRegistered
	case CodeCheckViolation:
		return ErrValidation
	case CodeNoDataFound, CodePostgRESTNoRows:
		return ErrNotFound
	case CodeInsufficientPriv, CodeJWTExpired:
		return ErrUnauthorized
	}
	return nil
}
