// Package main is the entry point for the code battles API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, database connections, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// This project has two executables: cmd/server (the API) and cmd/worker
// (the match runner). Each gets its own directory with its own main.go.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/code-battles/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	// os.Stdout means logs go to the terminal. slog.LevelDebug enables all log levels.
	//
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	// In production, you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// We read the port from the PORT environment variable, defaulting to 8080.
	// os.Getenv returns "" if the variable isn't set, so we check and provide a default.
	//
	// In a larger app, you'd use a config library (like viper) or a config struct
	// loaded from a YAML/TOML file. Env vars are simple and deploy cleanly.
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr) // Atoi = ASCII to Integer
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// === 3. DATABASE PATH ===
	// Default to "data/battles.db" in the project root.
	//
	// DB_PATH env var allows overriding for production deployments.
	// Example: DB_PATH=/var/lib/battles/prod.db
	dbPath := "data/battles.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	// Ensure the data directory exists.
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	// 0755 = owner can read/write/execute, others can read/execute.
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. AUTH CONFIGURATION ===
	// SESSION_SECRET must be a long random string. Use:
	//   SESSION_SECRET=$(openssl rand -hex 32)
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		logger.Error("SESSION_SECRET not set")
		os.Exit(1)
	}

	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}
	// GITHUB_BASE_URL selects a GitHub Enterprise instance; empty = github.com
	githubBaseURL := os.Getenv("GITHUB_BASE_URL")

	// RUNNER_KEY_HASH is the bcrypt hash of the runner's shared key.
	// Generate one with auth.HashRunnerKey — the plaintext never lives in
	// the server's environment.
	runnerKeyHash := os.Getenv("RUNNER_KEY_HASH")
	if runnerKeyHash == "" {
		logger.Error("RUNNER_KEY_HASH not set")
		os.Exit(1)
	}

	// === 5. COLLABORATOR SERVICES ===
	pollURL := os.Getenv("POLL_SERVICE_URL")
	pollKey := os.Getenv("POLL_SERVICE_KEY")
	if pollURL == "" {
		logger.Error("POLL_SERVICE_URL not set")
		os.Exit(1)
	}

	rosterURL := os.Getenv("ROSTER_URL")
	rosterKey := os.Getenv("ROSTER_KEY")

	// STAFF_LOGINS is a comma-separated list of GitHub logins with staff access
	var staffLogins []string
	if raw := os.Getenv("STAFF_LOGINS"); raw != "" {
		staffLogins = strings.Split(raw, ",")
	}

	// ENROLL_DEADLINE (RFC 3339, e.g. 2026-12-05T23:59:59-05:00) closes
	// enrollment for non-staff players. Unset means enrollment never closes.
	var enrollDeadline time.Time
	if raw := os.Getenv("ENROLL_DEADLINE"); raw != "" {
		var err error
		enrollDeadline, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			logger.Error("invalid ENROLL_DEADLINE value", slog.String("value", raw))
			os.Exit(1)
		}
	}

	// === 6. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		SessionSecret:      sessionSecret,
		GitHubClientID:     githubClientID,
		GitHubClientSecret: githubClientSecret,
		GitHubCallbackURL:  githubCallbackURL,
		GitHubBaseURL:      githubBaseURL,
		RunnerKeyHash:      runnerKeyHash,
		PollServiceURL:     pollURL,
		PollServiceKey:     pollKey,
		RosterURL:          rosterURL,
		RosterKey:          rosterKey,
		StaffLogins:        staffLogins,
		EnrollDeadline:     enrollDeadline,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
