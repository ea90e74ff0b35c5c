package models

import "time"

// User owns links and authenticates against the API. The password hash is
// never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserUpdate carries optional field changes for a user. Nil means unchanged.
type UserUpdate struct {
	Email    *string
	Name     *string
	Password *string
}
