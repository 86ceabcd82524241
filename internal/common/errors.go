// Package common defines shared constants and sentinel errors used across
// the rentdesk server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Upload validation errors.
	ErrInvalidUpload      = errors.New("file must be an image")
	ErrPayloadTooLarge    = errors.New("file size too large (max 5MB)")
	ErrInvalidLicenseType = errors.New("invalid license type")

	// Review errors.
	ErrInvalidStatus = errors.New("invalid license status")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Email verification errors.
	ErrInvalidOrExpiredVerificationToken = errors.New("verification link is invalid or expired")
	ErrVerificationRejected              = errors.New("email does not exist or is already verified")
	ErrTooManyRequests                   = errors.New("too many requests")
)
