package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrValidation          = errors.New("validation failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrDuplicateArtifact   = errors.New("artifact already exists")
	ErrInvalidAmount       = errors.New("amount must be a positive integer")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStaleUpdate         = errors.New("update does not apply to current status")
	ErrTimedOut            = errors.New("timed out waiting for terminal status")
)
