package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scomapp/scom-be/internal/models"
)

// ErrNotFound is returned when no live session exists for a given id.
var ErrNotFound = errors.New("session not found")

// Manager persists sessions in the relational store, keyed by the opaque id
// carried in the session cookie.
type Manager struct {
	db         *sql.DB
	ttl        time.Duration
	cookieName string
	secure     bool
}

// NewManager creates a session manager backed by db.
func NewManager(db *sql.DB, ttl time.Duration, cookieName string, secure bool) *Manager {
	return &Manager{db: db, ttl: ttl, cookieName: cookieName, secure: secure}
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string { return m.cookieName }

// Get loads the session with the given id. Expired sessions are treated as
// absent and removed opportunistically.
func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	var (
		s      models.Session
		userID sql.NullString
		uname  sql.NullString
		email  sql.NullString
		role   sql.NullString
		secret sql.NullString
	)
	row := m.db.QueryRowContext(ctx,
		`SELECT id, user_id, username, email, role, csrf_secret, created_at, expires_at
		 FROM sessions WHERE id = ?`, id)
	err := row.Scan(&s.ID, &userID, &uname, &email, &role, &secret, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	s.UserID, s.Username, s.Email, s.Role, s.CSRFSecret =
		userID.String, uname.String, email.String, role.String, secret.String

	if s.Expired(time.Now().UTC()) {
		_, _ = m.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", s.ID)
		return nil, ErrNotFound
	}
	return &s, nil
}

// Create inserts a new anonymous session row.
func (m *Manager) Create(ctx context.Context) (*models.Session, error) {
	now := time.Now().UTC()
	s := &models.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at, expires_at) VALUES (?, ?, ?)",
		s.ID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Ensure returns the request's session, creating one (and setting the cookie)
// when none exists yet.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (*models.Session, error) {
	if s := FromContext(r.Context()); s != nil {
		return s, nil
	}
	s, err := m.Create(r.Context())
	if err != nil {
		return nil, err
	}
	m.setCookie(w, s.ID)
	return s, nil
}

// Attach writes the user snapshot into the session row. The stored fields are
// a projection of the users row, not a live reference.
func (m *Manager) Attach(ctx context.Context, s *models.Session, u models.User) error {
	_, err := m.db.ExecContext(ctx,
		"UPDATE sessions SET user_id = ?, username = ?, email = ?, role = ? WHERE id = ?",
		u.ID, u.Username, u.Email, u.Role, s.ID)
	if err != nil {
		return fmt.Errorf("attach user to session: %w", err)
	}
	s.UserID, s.Username, s.Email, s.Role = u.ID, u.Username, u.Email, u.Role
	return nil
}

// Regenerate swaps the session id for a fresh one, carrying the row contents
// over and re-issuing the cookie. Called at login before the user snapshot is
// attached, so a fixated pre-login id never becomes an authenticated session.
func (m *Manager) Regenerate(ctx context.Context, w http.ResponseWriter, s *models.Session) error {
	newID := uuid.New().String()
	now := time.Now().UTC()
	expires := now.Add(m.ttl)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, username, email, role, csrf_secret, created_at, expires_at)
		 SELECT ?, user_id, username, email, role, csrf_secret, ?, ? FROM sessions WHERE id = ?`,
		newID, now, expires, s.ID); err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", s.ID); err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}

	s.ID = newID
	s.CreatedAt = now
	s.ExpiresAt = expires
	m.setCookie(w, newID)
	return nil
}

// Destroy deletes the session row and expires the cookie. Destroying a request
// without a session is a no-op.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *models.Session) error {
	if s != nil {
		if _, err := m.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", s.ID); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
	}
	m.clearCookie(w)
	return nil
}

// SetCSRFSecret persists the per-session anti-forgery secret.
func (m *Manager) SetCSRFSecret(ctx context.Context, s *models.Session, secret string) error {
	_, err := m.db.ExecContext(ctx,
		"UPDATE sessions SET csrf_secret = ? WHERE id = ?", secret, s.ID)
	if err != nil {
		return fmt.Errorf("set csrf secret: %w", err)
	}
	s.CSRFSecret = secret
	return nil
}

// RefreshRole resyncs the session's role snapshot with the authoritative user
// row, closing the stale-privilege window on identity checks.
func (m *Manager) RefreshRole(ctx context.Context, s *models.Session, role string) error {
	if s.Role == role {
		return nil
	}
	_, err := m.db.ExecContext(ctx, "UPDATE sessions SET role = ? WHERE id = ?", role, s.ID)
	if err != nil {
		return fmt.Errorf("refresh session role: %w", err)
	}
	s.Role = role
	return nil
}

// SyncIdentity mirrors changed username/email into the session snapshot,
// used when an admin edits their own account.
func (m *Manager) SyncIdentity(ctx context.Context, s *models.Session, username, email string) error {
	_, err := m.db.ExecContext(ctx,
		"UPDATE sessions SET username = ?, email = ? WHERE id = ?", username, email, s.ID)
	if err != nil {
		return fmt.Errorf("sync session identity: %w", err)
	}
	s.Username, s.Email = username, email
	return nil
}

// DeleteExpired removes sessions past their expiry. Run periodically by the
// maintenance sweeper.
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := m.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
