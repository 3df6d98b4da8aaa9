package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scomapp/scom-be/internal/models"
)

// ProfileServiceProvider defines the interface for profile services.
type ProfileServiceProvider interface {
	GetView(ctx context.Context, userID string) (models.ProfileView, error)
	Upsert(ctx context.Context, userID, fullName, bio string) (models.Profile, error)
}

// ProfileService manages the display fields attached to a user account.
type ProfileService struct {
	db *sql.DB
}

// NewProfileService creates a new ProfileService.
func NewProfileService(db *sql.DB) *ProfileService {
	return &ProfileService{db: db}
}

// GetView returns the user row joined with its profile. Users without a
// profile row get empty display fields.
func (s *ProfileService) GetView(ctx context.Context, userID string) (models.ProfileView, error) {
	var (
		v        models.ProfileView
		fullName sql.NullString
		bio      sql.NullString
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.role, p.full_name, p.bio
		 FROM users u
		 LEFT JOIN profiles p ON p.user_id = u.id
		 WHERE u.id = ?`, userID)
	if err := row.Scan(&v.ID, &v.Username, &v.Email, &v.Role, &fullName, &bio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ProfileView{}, ErrNotFound
		}
		return models.ProfileView{}, fmt.Errorf("load profile: %w", err)
	}
	v.FullName, v.Bio = fullName.String, bio.String
	return v, nil
}

// Upsert creates or updates the caller's profile row.
func (s *ProfileService) Upsert(ctx context.Context, userID, fullName, bio string) (models.Profile, error) {
	now := time.Now().UTC()
	p := models.Profile{
		UserID:    userID,
		FullName:  fullName,
		Bio:       bio,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, full_name, bio, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET full_name = excluded.full_name,
		 bio = excluded.bio, updated_at = excluded.updated_at`,
		p.UserID, p.FullName, p.Bio, p.UpdatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}
