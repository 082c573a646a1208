// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type SignupRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name"  validate:"required,max=100"`
	Email     string `json:"email"      validate:"required,email,max=255"`
	Phone     string `json:"phone"      validate:"required,max=32"`
	Address   string `json:"address"    validate:"omitempty,max=255"`
	Password  string `json:"password"   validate:"required,min=8,max=128"`

	// AdminCreate registers a walk-in client as already verified. Only
	// honoured for admin sessions.
	AdminCreate bool `json:"admin_create"`
}

type SigninRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=128"`
}

type SignupResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
	Message    string `json:"message"`
}

type SessionResponse struct {
	IdentityID string    `json:"identity_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Token      string    `json:"token,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
