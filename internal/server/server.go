// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
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

	"github.com/sakif/code-battles/internal/auth"
	"github.com/sakif/code-battles/internal/gitpoll"
	"github.com/sakif/code-battles/internal/handler"
	"github.com/sakif/code-battles/internal/middleware"
	sqliteRepo "github.com/sakif/code-battles/internal/repository/sqlite"
	"github.com/sakif/code-battles/internal/roster"
	"github.com/sakif/code-battles/internal/service"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from env vars in one place (cmd/server/main.go)
type Config struct {
	Port   int
	DBPath string

	// Session signing secret (HS256)
	SessionSecret string

	// GitHub OAuth. BaseURL is empty for github.com, or the root of a
	// GitHub Enterprise instance.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	GitHubBaseURL      string

	// Runner key, stored as a bcrypt hash
	RunnerKeyHash string

	// Git-polling service (submission fingerprints)
	PollServiceURL string
	PollServiceKey string

	// Course roster service + static staff logins
	RosterURL   string
	RosterKey   string
	StaffLogins []string

	// Last moment non-staff players may enroll. Zero means no deadline.
	EnrollDeadline time.Time
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). When the server shuts down,
// we must close it to flush any pending writes and release the file lock.
// This is handled in Start() during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
// This is where the entire dependency chain is assembled:
//  1. Create the database connection (sqlite.New)
//  2. Create the collaborator clients (gitpoll, roster) and auth services
//  3. Create the service layer with the store
//  4. Create the handlers with the services
//  5. Wire handlers to routes
//
// Each layer only receives what it needs:
// - Services get the repository interface (not the concrete sqlite.DB)
// - Handlers get the services (not the repository or DB)
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package. Import aliases are common in Go when
// package names would otherwise collide or be unclear.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
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

	// Set up middleware and routes
	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /auth/github/login      → redirect to GitHub authorization
// GET    /auth/github/callback   → OAuth callback, roster gate, session cookie
// POST   /auth/logout            → clear session cookie
// GET    /api/standings          → the ladder (screen names + records)
// GET    /api/player             → caller's profile, record, matchups
// GET    /api/player/screenname  → caller's screen name
// POST   /api/player/screenname  → change it
// GET    /api/player/matchups    → caller's matchup summaries
// POST   /api/player/enroll      → gated enrollment cascade
// GET    /api/matchups           → every matchup (staff only)
// GET    /runner/matchups/next   → runner: next matchup with queued matches
// POST   /runner/matchups/{id}/matches/next → runner: CAS-claim a match
// POST   /runner/matches/{id}/result        → runner: submit an outcome
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	// These run on EVERY request, in order
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	// Our custom logging middleware
	s.router.Use(middleware.Logger(s.logger))

	// === Collaborator clients and auth services ===
	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	github := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
		s.config.GitHubBaseURL,
	)
	runnerKeys := auth.NewRunnerKeyService(s.config.RunnerKeyHash)
	rosterClient := roster.New(s.config.RosterURL, s.config.RosterKey, s.config.StaffLogins)
	pollClient := gitpoll.New(s.config.PollServiceURL, s.config.PollServiceKey)

	// === Service layer ===
	// DEPENDENCY CHAIN:
	//   s.db (sqlite.DB) → implements repository.Store
	//   Services receive the store interface
	//   Handlers receive the services
	//
	// Notice: the handlers never touch the database directly.
	// The services never touch HTTP. Clean separation!
	playerService := service.NewPlayerService(s.db, s.logger)
	ladderService := service.NewLadderService(s.db, pollClient, s.config.EnrollDeadline, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(github, tokens, rosterClient, playerService, s.logger)
	playerHandler := handler.NewPlayerHandler(playerService, ladderService, rosterClient, s.logger)
	ladderHandler := handler.NewLadderHandler(ladderService, rosterClient, s.logger)
	runnerHandler := handler.NewRunnerHandler(ladderService, s.logger)

	// === Auth routes (no session required) ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === Player API (session cookie required) ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/standings", ladderHandler.HandleStandings)
		r.Get("/matchups", ladderHandler.HandleAllMatchups) // staff-gated in the handler

		r.Get("/player", playerHandler.HandleGetPlayer)
		r.Get("/player/screenname", playerHandler.HandleGetScreenName)
		r.Post("/player/screenname", playerHandler.HandleSetScreenName)
		r.Get("/player/matchups", playerHandler.HandleGetMatchups)
		r.Post("/player/enroll", playerHandler.HandleEnroll)
	})

	// === Runner API (shared key, no cookies) ===
	s.router.Route("/runner", func(r chi.Router) {
		r.Use(auth.RequireRunnerKey(runnerKeys))

		r.Get("/matchups/next", runnerHandler.HandleNextMatchup)
		r.Post("/matchups/{matchupID}/matches/next", runnerHandler.HandleClaimMatch)
		r.Post("/matches/{matchID}/result", runnerHandler.HandleSubmitResult)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// If we skip step 3, the database file might be left in an inconsistent state.
// The `defer s.db.Close()` ensures this happens even if something panics.
func (s *Server) Start() error {
	// Ensure the database is closed when the server stops.
	// This runs AFTER everything else in this function finishes.
	defer s.db.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the chi router for tests that drive the full HTTP surface
// with httptest without binding a socket.
func (s *Server) Router() http.Handler {
	return s.router
}
