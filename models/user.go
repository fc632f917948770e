package models

import "time"

// AdminUser is one operator account, stored as part of the site:users list.
type AdminUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// Identity is what a successful login yields. It never carries the hash.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u AdminUser) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Identity  `json:"user"`
}

// UserAction is the body of PUT /api/admin/users.
type UserAction struct {
	Action   string `json:"action" binding:"required,oneof=add update remove"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}
