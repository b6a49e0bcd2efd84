// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: main hands it a Config, and New
// assembles the whole dependency chain in one place —
//
//	sqlite.DB → repositories → IdentityService / SessionService
//	TokenService + GoogleProvider → AuthHandler → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services. Nothing below this package touches
// the environment or constructs its own dependencies.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Sequence-Game/auth-module/internal/auth"
	"github.com/Sequence-Game/auth-module/internal/config"
	"github.com/Sequence-Game/auth-module/internal/handler"
	"github.com/Sequence-Game/auth-module/internal/middleware"
	sqliteRepo "github.com/Sequence-Game/auth-module/internal/repository/sqlite"
	"github.com/Sequence-Game/auth-module/internal/service"
)

// Server owns the router, the database connection, and the configured
// listener. The database is closed during graceful shutdown to flush the
// WAL and release the file lock.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with the full dependency chain wired.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and all route handlers.
//
// ROUTE STRUCTURE:
//
//	POST /api/v1/auth/register      → credential signup, returns token pair
//	POST /api/v1/auth/login         → credential signin, returns token pair
//	POST /api/v1/auth/refresh       → new access token from a refresh token
//	POST /api/v1/auth/logout        → revoke a refresh token
//	POST /api/v1/auth/social-login  → provider-token signin (mobile/SPA)
//	GET  /api/v1/auth/me            → current profile (bearer auth)
//	GET  /auth/google/login         → browser OAuth redirect
//	GET  /auth/google/callback      → browser OAuth completion
//	GET  /healthz                   → liveness probe
//
// MIDDLEWARE ORDER MATTERS — it executes in the order added:
// RequestID → RealIP → Recoverer → request logging.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.AccessTokenTTL, s.config.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
		s.config.GoogleUserInfoURL,
	)

	identity := service.NewIdentityService(
		s.db.Users(),
		s.db.SocialAccounts(),
		auth.NewPasswordService(),
		s.logger,
	)
	sessions := service.NewSessionService(
		tokens,
		s.db.RefreshTokens(),
		s.config.RotateRefreshTokens,
		s.logger,
	)

	authHandler := handler.NewAuthHandler(identity, sessions, google, s.logger)

	s.router.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/social-login", authHandler.HandleSocialLogin)

		// Protected routes: RequireAuth validates the bearer token and
		// puts the userID into the request context.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
		})
	})

	// Browser OAuth flow lives outside the JSON API prefix — Google
	// redirects the user's browser here directly.
	s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
	s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return nil
}

// Start runs the HTTP server and blocks until shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("rotateRefreshTokens", s.config.RotateRefreshTokens),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
