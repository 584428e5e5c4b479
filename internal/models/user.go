package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an investor account. Every deal is owned by exactly one user.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole decides what an account may do beyond managing its own deals
type UserRole string

const (
	// RoleUser logs, scores and publishes their own deals
	RoleUser UserRole = "user"
	// RoleAdmin can additionally rescore every stored deal and watch the pipeline
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// CanRescore reports whether the role may run a portfolio-wide rescore
func (r UserRole) CanRescore() bool {
	return r == RoleAdmin
}

// CanRescore reports whether the user may run a portfolio-wide rescore
func (u *User) CanRescore() bool {
	return u.Role.CanRescore()
}

// RegisterRequest is a self-service investor signup
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest exchanges credentials for a token pair
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RefreshRequest carries a refresh token when no cookie is present
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse is a token pair plus the account it was issued to
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}
