package models

import "time"

// Profile holds the editable display fields attached to a user.
type Profile struct {
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	Bio       string    `json:"bio"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileView is a user row joined with its profile, as returned by GET /api/profile/me.
type ProfileView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
	Bio      string `json:"bio"`
}
