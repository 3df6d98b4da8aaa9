package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/models"
)

type contextKey struct{}

var sessionKey = contextKey{}

// FromContext returns the session loaded by Middleware, or nil for anonymous
// requests.
func FromContext(ctx context.Context) *models.Session {
	s, _ := ctx.Value(sessionKey).(*models.Session)
	return s
}

// NewContext returns ctx with the session attached. Used by middleware that
// creates a session mid-request so downstream handlers observe it.
func NewContext(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Middleware resolves the session cookie into a server-side session record and
// stores it in the request context. Requests without a live session proceed as
// anonymous; handlers that need a session create one via Ensure.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(m.cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := m.Get(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					log.Error().Err(err).Msg("Failed to load session")
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				// Stale cookie; drop it and continue as anonymous.
				m.clearCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
		})
	}
}

// RequireAuth rejects requests whose session carries no authenticated user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated() {
			writeJSONError(w, http.StatusUnauthorized, "auth required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose session snapshot lacks the admin role.
// This is a capability gate on top of authentication, not a replacement for it.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		if !s.Authenticated() {
			writeJSONError(w, http.StatusUnauthorized, "auth required")
			return
		}
		if !s.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
