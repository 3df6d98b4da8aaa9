// Package ratelimit provides fixed-window request counters keyed by client
// address. Limiters are constructed values injected into the router, never
// package-level singletons, so tests can build and reset them freely.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	count   int
	startAt time.Time
}

// Limiter counts requests per key within a fixed window. Counters reset
// strictly after the window elapses; every request within the window counts,
// whatever the downstream outcome.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	windowLen time.Duration
	max       int
	message   string
}

// New creates a limiter allowing max requests per windowLen for each key.
// message is the fixed 429 response body text.
func New(windowLen time.Duration, max int, message string) *Limiter {
	return &Limiter{
		windows:   make(map[string]*window),
		windowLen: windowLen,
		max:       max,
		message:   message,
	}
}

// Allow records one request for key and reports whether it fits the ceiling.
// retryAfter is the time left in the current window when the request is denied.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]
	if !exists || now.Sub(w.startAt) >= l.windowLen {
		w = &window{startAt: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.max {
		return false, w.startAt.Add(l.windowLen).Sub(now)
	}
	return true, 0
}

// Reset clears the counter for a single key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Sweep drops counters whose window has elapsed. Called periodically by the
// maintenance sweeper to keep the map from growing with one-off clients.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.startAt) >= l.windowLen {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Middleware enforces the limiter per client address. Exceeding the ceiling
// short-circuits with 429 before the downstream handler runs.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := l.Allow(clientKey(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": l.message})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MutatingMiddleware is like Middleware but lets safe (read-only) methods
// through uncounted; only state-changing requests consume the window.
func (l *Limiter) MutatingMiddleware() func(http.Handler) http.Handler {
	limit := l.Middleware()
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

// clientKey extracts the client network address. chi's RealIP middleware has
// already rewritten RemoteAddr when the request came through a proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
