package models

import "time"

// Comment is a page comment. The stored ip_hash is a truncated digest of the
// client address kept for light anti-spam; the raw IP is never persisted.
type Comment struct {
	ID        string    `json:"id"`
	PageSlug  string    `json:"-"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	IPHash    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
