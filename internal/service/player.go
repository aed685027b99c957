// Package service contains the business logic layer of the application.
//
// The split mirrors the rest of the stack: handlers only parse HTTP and write
// JSON, services enforce the tournament rules, repositories run SQL. Services
// accept the repository interfaces, never the concrete sqlite store, so tests
// drive them with in-memory fakes.
//
// Two services cover the engine: PlayerService is the registry (identity,
// screen names, enrollment bookkeeping) and LadderService is the tournament
// itself (matchup generation, match lifecycle, records, the re-enrollment
// cascade).
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
	"github.com/sakif/code-battles/internal/repository"
)

const (
	// Screen names are generated from a fixed alphabet at a fixed length, the
	// same format the frontend has always displayed. Players can replace the
	// generated name later, subject to uniqueness.
	screenNameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	screenNameLength   = 6

	// screenNameRetries bounds generation retries on collision. With 36^6
	// possible names a collision is already freak-rare; hitting the bound
	// means something is systematically wrong, not bad luck.
	screenNameRetries = 5

	MaxScreenNameLength = 32
)

// PlayerService handles the player registry: lookup, first-time
// initialization, screen names, and the enrollment fields.
type PlayerService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewPlayerService creates a PlayerService.
func NewPlayerService(store repository.Store, logger *slog.Logger) *PlayerService {
	return &PlayerService{
		store:  store,
		logger: logger,
	}
}

// Lookup retrieves a player by username.
// Returns apperror.ErrNotFound if the player was never initialized.
func (s *PlayerService) Lookup(ctx context.Context, username string) (*model.Player, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.store.GetPlayerByUsername(ctx, username)
}

// Initialize creates a player with a freshly generated random screen name.
//
// Screen names are globally unique; if the generated name collides with an
// existing one the repository reports a conflict and we generate a new name.
// Retries are bounded — see screenNameRetries.
func (s *PlayerService) Initialize(ctx context.Context, username string) (*model.Player, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}

	var lastErr error
	for attempt := 0; attempt < screenNameRetries; attempt++ {
		name, err := generateScreenName()
		if err != nil {
			return nil, fmt.Errorf("generating screen name: %w", err)
		}

		player, err := s.store.CreatePlayer(ctx, username, name)
		if err == nil {
			s.logger.Info("player initialized",
				slog.Int64("id", player.ID),
				slog.String("username", username),
				slog.String("screenName", name),
			)
			return player, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}

	s.logger.Error("screen name generation kept colliding",
		slog.String("username", username),
		slog.Int("attempts", screenNameRetries),
	)
	return nil, fmt.Errorf("initializing player %q: %w", username, lastErr)
}

// EnsurePlayer returns the player for username, creating them on first
// authorized access. Authorization (roster membership) is the caller's
// responsibility — by the time this runs, the login has already been vetted.
func (s *PlayerService) EnsurePlayer(ctx context.Context, username string) (*model.Player, error) {
	player, err := s.Lookup(ctx, username)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	return s.Initialize(ctx, username)
}

// GetScreenName returns the player's current screen name.
func (s *PlayerService) GetScreenName(ctx context.Context, username string) (string, error) {
	player, err := s.Lookup(ctx, username)
	if err != nil {
		return "", err
	}
	return player.ScreenName, nil
}

// SetScreenName replaces the player's screen name.
//
// Outcomes, kept deliberately distinct:
//   - apperror.ErrNoChange — the new name equals the current one ("nothing to
//     do", not an error)
//   - apperror.ErrConflict — another player already holds the name
//   - success — the name was overwritten atomically
func (s *PlayerService) SetScreenName(ctx context.Context, username, newName string) (string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return "", apperror.ValidationFailed("screenname", "screen name is required")
	}
	if len(newName) > MaxScreenNameLength {
		return "", apperror.ValidationFailed("screenname",
			fmt.Sprintf("screen name must be %d characters or less", MaxScreenNameLength))
	}

	player, err := s.Lookup(ctx, username)
	if err != nil {
		return "", err
	}

	if player.ScreenName == newName {
		return "", apperror.NoChange("the given screen name is identical to the current one")
	}

	if err := s.store.UpdateScreenName(ctx, player.Username, newName); err != nil {
		return "", err
	}

	s.logger.Info("screen name updated",
		slog.String("username", player.Username),
		slog.String("screenName", newName),
	)
	return newName, nil
}

// normalizeUsername lowercases and trims a login. GitHub logins are
// case-insensitive but the registry keys on the exact string, so every entry
// point funnels through this.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// generateScreenName draws a random name from the fixed alphabet.
// crypto/rand rather than math/rand: names double as the public identity of
// players who never rename, so they should not be predictable from one another.
func generateScreenName() (string, error) {
	buf := make([]byte, screenNameLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = screenNameAlphabet[int(b)%len(screenNameAlphabet)]
	}
	return string(buf), nil
}
