package handlers

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/services"
	"github.com/scomapp/scom-be/internal/session"
)

// CommentHandler handles the page-comment feature.
type CommentHandler struct {
	service services.CommentServiceProvider
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(service services.CommentServiceProvider) *CommentHandler {
	return &CommentHandler{service: service}
}

// List handles GET /api/comments?slug=...
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		respondError(w, http.StatusBadRequest, "slug required")
		return
	}

	comments, err := h.service.ListBySlug(r.Context(), slug)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to list comments")
		respondInternal(w)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// Create handles POST /api/comments. The author always comes from the
// session, never from the body.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Slug    string `json:"slug"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slug := strings.TrimSpace(payload.Slug)
	message := strings.TrimSpace(payload.Message)
	if slug == "" {
		respondError(w, http.StatusBadRequest, "slug required")
		return
	}
	if len(message) < 1 || len(message) > 2000 {
		respondError(w, http.StatusBadRequest, "message must be 1-2000 characters")
		return
	}

	s := session.FromContext(r.Context())
	comment, err := h.service.Create(r.Context(), slug, s.Username, message, clientIP(r))
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to create comment")
		respondInternal(w)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /api/comments/{id}, admin only.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(w, http.StatusNotFound, "comment not found")
			return
		}
		log.Error().Err(err).Str("comment_id", id).Msg("Failed to delete comment")
		respondInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
