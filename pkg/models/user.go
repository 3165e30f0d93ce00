package models

import (
	"time"
)

type User struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AuthRequest is the partial user sent to the signup and login endpoints.
// Login only reads Email and Password.
type AuthRequest struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileUpdateRequest struct {
	ProfilePic string `json:"profilePic"`
}

// ErrorResponse is the body the API returns with any non-2xx status.
type ErrorResponse struct {
	Message string `json:"message"`
}
