package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/scomapp/scom-be/internal/database"
	"github.com/scomapp/scom-be/internal/models"
)

// AuthServiceProvider defines the interface for authentication services.
type AuthServiceProvider interface {
	Register(ctx context.Context, username, email, password string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// AuthService implements registration and credential verification.
type AuthService struct {
	db         *sql.DB
	bcryptCost int
}

// NewAuthService creates an AuthService. bcryptCost is the work factor for
// self-registration; admin-initiated writes use their own, higher cost.
func NewAuthService(db *sql.DB, bcryptCost int) *AuthService {
	return &AuthService{db: db, bcryptCost: bcryptCost}
}

// Register creates a new user account with the default role. Returns
// ErrDuplicate when the username or email is already taken; the UNIQUE
// constraints back the pre-check against concurrent registrations.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username = ? OR email = ?", username, email).Scan(&exists)
	if err == nil {
		return models.User{}, ErrDuplicate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("check duplicate user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, string(hash), user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// Authenticate verifies a username/password pair. Unknown usernames and wrong
// passwords both collapse into ErrInvalidCredentials so responses cannot be
// used to enumerate accounts. A malformed stored hash is an internal error,
// never a silent mismatch.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at
		 FROM users WHERE username = ?`, username)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("verify password: %w", err)
	}

	return user.Sanitize(), nil
}

// GetUserByID retrieves a single user by their ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role, created_at, updated_at FROM users WHERE id = ?`, id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
