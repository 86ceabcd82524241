// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account that can upload driver licenses. Administrators have
// IsAdmin set and sign in through the admin login.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	HashedPassword string `json:"-"`
	IsActive       bool   `json:"is_active"`
	IsAdmin        bool   `json:"is_admin"`
	IsVerified     bool   `json:"is_verified"`
	// Language is the preferred notification language ("en", "zh-CN").
	Language string `json:"language"`

	// VerificationToken holds the SHA-256 digest of the outstanding token.
	VerificationToken        *string    `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
