package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/services"
	"github.com/scomapp/scom-be/internal/session"
	"github.com/scomapp/scom-be/internal/validation"
)

// UserHandler handles the admin user-management panel.
type UserHandler struct {
	service  services.UserServiceProvider
	sessions *session.Manager
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, sessions *session.Manager) *UserHandler {
	return &UserHandler{service: service, sessions: sessions}
}

// AdminCreatePayload defines the structure for admin user creation.
type AdminCreatePayload struct {
	Username string `json:"username" validate:"required,min=3,max=32,username_chars"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// AdminUpdatePayload is a partial update; nil fields were not supplied.
type AdminUpdatePayload struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=32,username_chars"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
}

// List handles GET /api/users with page/limit pagination.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 10)
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	users, total, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		respondInternal(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  users,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload AdminCreatePayload
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

	user, err := h.service.Create(r.Context(), payload.Username, payload.Email, payload.Password, payload.Role)
	if err != nil {
		if errors.Is(err, services.ErrDuplicate) {
			respondError(w, http.StatusConflict, "username or email already exists")
			return
		}
		log.Error().Err(err).Str("username", payload.Username).Msg("Failed to create user")
		respondInternal(w)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "user created",
		"user":    user.Sanitize(),
	})
}

// Update handles PUT /api/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var payload AdminUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Username != nil {
		*payload.Username = validation.NormalizeUsername(*payload.Username)
	}
	if payload.Email != nil {
		*payload.Email = validation.NormalizeEmail(*payload.Email)
	}

	if errs := validation.Check(payload); errs != nil {
		respondValidation(w, errs)
		return
	}

	actor := session.FromContext(r.Context())
	patch := services.UserPatch{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	}

	user, err := h.service.Update(r.Context(), id, actor.UserID, patch)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrSelfRoleChange):
			respondError(w, http.StatusForbidden, "admins cannot change their own role")
		case errors.Is(err, services.ErrDuplicate):
			respondError(w, http.StatusConflict, "username or email already in use")
		case errors.Is(err, services.ErrNothingToUpdate):
			respondError(w, http.StatusBadRequest, "nothing to update")
		default:
			log.Error().Err(err).Str("user_id", id).Msg("Failed to update user")
			respondInternal(w)
		}
		return
	}

	// Self-edit: keep the session snapshot consistent with the new identity.
	if actor.UserID == id && (payload.Username != nil || payload.Email != nil) {
		if err := h.sessions.SyncIdentity(r.Context(), actor, user.Username, user.Email); err != nil {
			log.Error().Err(err).Str("user_id", id).Msg("Failed to sync session identity")
			respondInternal(w)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "user updated",
		"user":    user.Sanitize(),
	})
}

// Delete handles DELETE /api/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	actor := session.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, actor.UserID); err != nil {
		switch {
		case errors.Is(err, services.ErrSelfDelete):
			respondError(w, http.StatusForbidden, "admins cannot delete their own account")
		case errors.Is(err, services.ErrNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		default:
			log.Error().Err(err).Str("user_id", id).Msg("Failed to delete user")
			respondInternal(w)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
