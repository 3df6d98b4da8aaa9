package api

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/api/handlers"
	"github.com/scomapp/scom-be/internal/config"
	"github.com/scomapp/scom-be/internal/csrf"
	"github.com/scomapp/scom-be/internal/ratelimit"
	"github.com/scomapp/scom-be/internal/services"
	"github.com/scomapp/scom-be/internal/session"
)

// NewRouter creates and configures the Chi router. Middleware order on /api
// is the security pipeline: session resolution, then CSRF, then the API rate
// limiter; the login endpoint carries its own stricter limiter inside that
// chain.
func NewRouter(
	cfg *config.Config,
	sessions *session.Manager,
	authService services.AuthServiceProvider,
	userService services.UserServiceProvider,
	profileService services.ProfileServiceProvider,
	commentService services.CommentServiceProvider,
	apiLimiter *ratelimit.Limiter,
	loginLimiter *ratelimit.Limiter,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(100 * 1024))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", csrf.HeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	guard := csrf.NewGuard(sessions)
	authHandler := handlers.NewAuthHandler(authService, sessions)
	userHandler := handlers.NewUserHandler(userService, sessions)
	profileHandler := handlers.NewProfileHandler(profileService)
	commentHandler := handlers.NewCommentHandler(commentService)

	r.Route("/api", func(r chi.Router) {
		r.Use(sessions.Middleware())
		r.Use(guard.Middleware())
		r.Use(apiLimiter.MutatingMiddleware())

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Get("/csrf", guard.TokenHandler)
			r.Get("/me", authHandler.Me)
			r.Post("/register", authHandler.Register)
			r.With(loginLimiter.Middleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(session.RequireAdmin)
			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Put("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(session.RequireAuth)
			r.Get("/me", profileHandler.Me)
			r.Put("/me", profileHandler.UpdateMe)
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", commentHandler.List)
			r.With(session.RequireAuth).Post("/", commentHandler.Create)
			r.With(session.RequireAdmin).Delete("/{id}", commentHandler.Delete)
		})
	})

	// Static frontend, when the directory exists.
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
