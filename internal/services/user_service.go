package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/scomapp/scom-be/internal/database"
	"github.com/scomapp/scom-be/internal/models"
)

// UserPatch is a typed partial update: nil means "not supplied". The builder
// maps presence to SQL assignments, so no dynamic untyped query assembly.
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
	Role     *string
}

// UserServiceProvider defines the interface for admin user management.
type UserServiceProvider interface {
	List(ctx context.Context, page, limit int) ([]models.User, int, error)
	Create(ctx context.Context, username, email, password, role string) (models.User, error)
	Update(ctx context.Context, id, actorID string, patch UserPatch) (models.User, error)
	Delete(ctx context.Context, id, actorID string) error
}

// UserService provides the admin panel's transactional user management.
type UserService struct {
	db         *sql.DB
	bcryptCost int
}

// NewUserService creates a UserService. bcryptCost is the admin-path work
// factor, higher than the self-registration one.
func NewUserService(db *sql.DB, bcryptCost int) *UserService {
	return &UserService{db: db, bcryptCost: bcryptCost}
}

// List returns one page of users plus the total count. Hashes never leave the
// query.
func (s *UserService) List(ctx context.Context, page, limit int) ([]models.User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	offset := (page - 1) * limit

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, role, created_at, updated_at
		 FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, limit)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Create inserts a user and its dependent profile row inside one transaction.
// The duplicate pre-check gives a clean 409; the UNIQUE constraint is the
// race-proof guarantee when two creates interleave.
func (s *UserService) Create(ctx context.Context, username, email, password, role string) (models.User, error) {
	if role == "" {
		role = models.RoleUser
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
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
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, string(hash), user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	// Idempotent side record: every user gets a profile row.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO profiles (user_id) VALUES (?) ON CONFLICT DO NOTHING", user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit create user: %w", err)
	}
	return user, nil
}

// Update applies a partial update inside one transaction. actorID is the
// acting admin's user id, used for the self-protection invariant: an admin
// may not change their own role, and self-edits of username/email are
// mirrored into the session by the handler afterwards.
func (s *UserService) Update(ctx context.Context, id, actorID string, patch UserPatch) (models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("begin update user: %w", err)
	}
	defer tx.Rollback()

	var current models.User
	row := tx.QueryRowContext(ctx,
		"SELECT id, username, email, role FROM users WHERE id = ?", id)
	if err := row.Scan(&current.ID, &current.Username, &current.Email, &current.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	// Self-protection: reject before any mutation.
	if actorID == id && patch.Role != nil && *patch.Role != current.Role {
		return models.User{}, ErrSelfRoleChange
	}

	// Duplicate checks only for fields that actually change.
	if patch.Username != nil && *patch.Username != current.Username {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM users WHERE username = ? AND id <> ?", *patch.Username, id).Scan(&exists)
		if err == nil {
			return models.User{}, ErrDuplicate
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("check duplicate username: %w", err)
		}
	}
	if patch.Email != nil && *patch.Email != current.Email {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM users WHERE email = ? AND id <> ?", *patch.Email, id).Scan(&exists)
		if err == nil {
			return models.User{}, ErrDuplicate
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("check duplicate email: %w", err)
		}
	}

	var (
		assignments []string
		args        []any
	)
	if patch.Username != nil && *patch.Username != current.Username {
		assignments = append(assignments, "username = ?")
		args = append(args, *patch.Username)
	}
	if patch.Email != nil && *patch.Email != current.Email {
		assignments = append(assignments, "email = ?")
		args = append(args, *patch.Email)
	}
	// Role may be set on any account except the actor's own.
	if patch.Role != nil && actorID != id {
		assignments = append(assignments, "role = ?")
		args = append(args, *patch.Role)
	}
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.bcryptCost)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		assignments = append(assignments, "password_hash = ?")
		args = append(args, string(hash))
	}

	if len(assignments) == 0 {
		return models.User{}, ErrNothingToUpdate
	}

	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE users SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}

	var updated models.User
	row = tx.QueryRowContext(ctx,
		"SELECT id, username, email, role, created_at, updated_at FROM users WHERE id = ?", id)
	if err := row.Scan(&updated.ID, &updated.Username, &updated.Email, &updated.Role,
		&updated.CreatedAt, &updated.UpdatedAt); err != nil {
		return models.User{}, fmt.Errorf("reload user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit update user: %w", err)
	}
	return updated, nil
}

// Delete removes a user by id. Deleting the acting admin's own account is
// rejected; the profiles row goes with the user via ON DELETE CASCADE.
func (s *UserService) Delete(ctx context.Context, id, actorID string) error {
	if actorID == id {
		return ErrSelfDelete
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
