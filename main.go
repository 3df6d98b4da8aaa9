package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/api"
	"github.com/scomapp/scom-be/internal/config"
	"github.com/scomapp/scom-be/internal/database"
	"github.com/scomapp/scom-be/internal/logger"
	"github.com/scomapp/scom-be/internal/maintenance"
	"github.com/scomapp/scom-be/internal/ratelimit"
	"github.com/scomapp/scom-be/internal/services"
	"github.com/scomapp/scom-be/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Env)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Sessions and rate limiters
	sessions := session.NewManager(db, cfg.SessionTTL, cfg.SessionCookieName, cfg.IsProduction())
	apiLimiter := ratelimit.New(cfg.APILimitWindow, cfg.APILimitMax,
		"too many requests, try again soon")
	loginLimiter := ratelimit.New(cfg.LoginLimitWindow, cfg.LoginLimitMax,
		"too many attempts, try again in a few minutes")

	// Set up services
	authService := services.NewAuthService(db, cfg.BcryptCost)
	userService := services.NewUserService(db, cfg.BcryptCostAdmin)
	profileService := services.NewProfileService(db)
	commentService := services.NewCommentService(db)

	// Background TTL sweeper for sessions + limiter windows
	sweeper := maintenance.NewSweeper(sessions, cfg.SessionSweepEvery, apiLimiter, loginLimiter)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start maintenance sweeper")
	}

	// Set up router
	router := api.NewRouter(cfg, sessions, authService, userService, profileService, commentService,
		apiLimiter, loginLimiter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		var err error
		if cfg.HTTPSEnabled {
			log.Info().Int("port", cfg.Port).Msg("HTTPS server starting")
			err = srv.ListenAndServeTLS(cfg.HTTPSCert, cfg.HTTPSKey)
		} else {
			log.Info().Int("port", cfg.Port).Msg("HTTP server starting")
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
