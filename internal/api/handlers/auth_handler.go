package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/services"
	"github.com/scomapp/scom-be/internal/session"
	"github.com/scomapp/scom-be/internal/validation"
)

// AuthHandler handles registration, login, logout and identity checks.
type AuthHandler struct {
	service  services.AuthServiceProvider
	sessions *session.Manager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.AuthServiceProvider, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{service: service, sessions: sessions}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username" validate:"required,min=3,max=32,username_chars"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginPayload defines the structure for login requests. Only presence is
// validated here; format rules apply at registration time.
type LoginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.Username = validation.NormalizeUsername(payload.Username)
	payload.Email = validation.NormalizeEmail(payload.Email)

	if errs := validation.Check(payload); errs != nil {
		respondValidation(w, errs)
		return
	}

	user, err := h.service.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrDuplicate) {
			respondError(w, http.StatusConflict, "username or email already registered")
			return
		}
		log.Error().Err(err).Str("username", payload.Username).Msg("Failed to register user")
		respondInternal(w)
		return
	}

	// Registration logs the new account in immediately.
	s, err := h.sessions.Ensure(w, r)
	if err == nil {
		err = h.sessions.Attach(r.Context(), s, user)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to establish session after register")
		respondInternal(w)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "account created",
		"user":    user.Sanitize(),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.Username = validation.NormalizeUsername(payload.Username)

	if errs := validation.Check(payload); errs != nil {
		respondValidation(w, errs)
		return
	}

	user, err := h.service.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			// Identical response for unknown user and wrong password.
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error().Err(err).Msg("Failed authentication attempt")
		respondInternal(w)
		return
	}

	// New session id before attaching the user defeats fixation.
	s, err := h.sessions.Ensure(w, r)
	if err == nil {
		err = h.sessions.Regenerate(r.Context(), w, s)
	}
	if err == nil {
		err = h.sessions.Attach(r.Context(), s, user)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to establish session at login")
		respondInternal(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"user":    user,
	})
}

// Logout handles POST /api/auth/logout. Succeeds even without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if err := h.sessions.Destroy(r.Context(), w, s); err != nil {
		log.Error().Err(err).Msg("Failed to destroy session")
		respondInternal(w)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me. Anonymous callers get 204; authenticated ones
// get the authoritative user row, with the session's role snapshot refreshed
// to close any stale-privilege window.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !s.Authenticated() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), s.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// The account is gone; the session no longer identifies anyone.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Error().Err(err).Str("user_id", s.UserID).Msg("Failed to load user for identity check")
		respondInternal(w)
		return
	}

	if err := h.sessions.RefreshRole(r.Context(), s, user.Role); err != nil {
		log.Error().Err(err).Str("user_id", s.UserID).Msg("Failed to refresh session role")
		respondInternal(w)
		return
	}

	respondJSON(w, http.StatusOK, user.Sanitize())
}
