package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountLocked    = errors.New("account is locked")
	ErrAccountNotLocked = errors.New("account is not locked")
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrAlreadyVerified  = errors.New("email address already verified")
)
