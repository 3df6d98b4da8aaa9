package models

import "time"

// Session is the server-side record behind the opaque session cookie.
// The user fields are a denormalized snapshot taken at login time; they can
// drift from the users row until a refresh path (identity check, self-edit)
// resyncs them.
type Session struct {
	ID         string
	UserID     string
	Username   string
	Email      string
	Role       string
	CSRFSecret string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Authenticated reports whether a user is attached to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// IsAdmin reports whether the session snapshot carries the admin role.
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Role == RoleAdmin
}

// Expired reports whether the session passed its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
