package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/services"
	"github.com/scomapp/scom-be/internal/session"
)

// ProfileHandler handles the authenticated user's own profile.
type ProfileHandler struct {
	service services.ProfileServiceProvider
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service services.ProfileServiceProvider) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Me handles GET /api/profile/me.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	view, err := h.service.GetView(r.Context(), s.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Error().Err(err).Str("user_id", s.UserID).Msg("Failed to load profile")
		respondInternal(w)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateMe handles PUT /api/profile/me, an authenticated upsert of display
// fields.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string `json:"fullName"`
		Bio      string `json:"bio"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s := session.FromContext(r.Context())
	profile, err := h.service.Upsert(r.Context(), s.UserID,
		strings.TrimSpace(payload.FullName), strings.TrimSpace(payload.Bio))
	if err != nil {
		log.Error().Err(err).Str("user_id", s.UserID).Msg("Failed to update profile")
		respondInternal(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "profile updated",
		"profile": profile,
	})
}
