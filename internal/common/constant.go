package common

import "time"

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

const (
	// VerificationTokenValidity is how long an email verification link stays redeemable.
	VerificationTokenValidity = 24 * time.Hour

	// MaxUploadSize is the largest license image accepted, in bytes.
	MaxUploadSize = 5 * 1024 * 1024
)
