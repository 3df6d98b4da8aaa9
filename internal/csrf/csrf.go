// Package csrf implements per-session anti-forgery protection. A random
// secret lives server-side in the session row; clients receive a derived
// token (salted hash of the secret) and must echo it in a request header on
// every non-safe method.
package csrf

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/models"
	"github.com/scomapp/scom-be/internal/session"
)

// HeaderName is the request header carrying the CSRF token on mutating calls.
const HeaderName = "X-CSRF-Token"

// GenerateSecret returns a new session-scoped CSRF secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Tokenize derives a client-facing token from the secret. Each call salts the
// digest, so tokens differ between requests while verifying against the same
// secret.
func Tokenize(secret string) (string, error) {
	salt := make([]byte, 4)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate csrf salt: %w", err)
	}
	s := hex.EncodeToString(salt)
	return s + "-" + digest(s, secret), nil
}

// Verify checks a client-presented token against the session secret.
func Verify(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	salt, sum, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}
	expected := digest(salt, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sum)) == 1
}

func digest(salt, secret string) string {
	h := sha256.Sum256([]byte(salt + secret))
	return hex.EncodeToString(h[:])
}

// Guard wires CSRF issuance and verification to the session store.
type Guard struct {
	sessions *session.Manager
}

// NewGuard creates a CSRF guard bound to the session manager.
func NewGuard(sessions *session.Manager) *Guard {
	return &Guard{sessions: sessions}
}

// Middleware enforces the CSRF contract. Safe methods pass through but
// transparently make sure the caller has a session with a minted secret;
// unsafe methods are rejected with 403 before any other processing when the
// header is absent or does not verify.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				s, _, err := g.ensureSecret(w, r)
				if err != nil {
					log.Error().Err(err).Msg("Failed to mint CSRF secret")
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
				return
			}

			s := session.FromContext(r.Context())
			if s == nil || !Verify(s.CSRFSecret, r.Header.Get(HeaderName)) {
				writeJSONError(w, http.StatusForbidden, "invalid csrf token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenHandler serves GET /api/auth/csrf, returning a token bound to the
// caller's session.
func (g *Guard) TokenHandler(w http.ResponseWriter, r *http.Request) {
	_, secret, err := g.ensureSecret(w, r)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue CSRF token")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	token, err := Tokenize(secret)
	if err != nil {
		log.Error().Err(err).Msg("Failed to derive CSRF token")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}

func (g *Guard) ensureSecret(w http.ResponseWriter, r *http.Request) (*models.Session, string, error) {
	s, err := g.sessions.Ensure(w, r)
	if err != nil {
		return nil, "", err
	}
	if s.CSRFSecret != "" {
		return s, s.CSRFSecret, nil
	}
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}
	if err := g.sessions.SetCSRFSecret(r.Context(), s, secret); err != nil {
		return nil, "", err
	}
	return s, secret, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
