// Package main is the entry point for the match worker.
//
// The worker is a headless loop: ask the API for the oldest matchup with
// queued matches, claim those matches one by one, fetch both players'
// submissions from the git-polling service, play each match in the docker
// sandbox, and report the results. Several workers can run side by side —
// claiming is a compare-and-swap on the server, so two workers never play
// the same match.
//
// The worker deliberately holds no database connection. Everything goes
// through the runner API, so the engine's invariants (one result per match,
// cancelled matches stay cancelled) are enforced in exactly one place.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/code-battles/internal/executor"
	"github.com/sakif/code-battles/internal/executor/docker"
	"github.com/sakif/code-battles/internal/gitpoll"
	"github.com/sakif/code-battles/internal/service"
)

// idleBackoff is how long the worker sleeps when the ladder is drained.
const idleBackoff = 15 * time.Second

type worker struct {
	api    *apiClient
	poll   *gitpoll.Client
	games  executor.Executor
	logger *slog.Logger
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Each worker instance gets a random id so log lines from parallel
	// workers can be told apart when aggregated.
	logger = logger.With(slog.String("worker", xid.New().String()))

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	// RUNNER_KEY is the plaintext shared key; the server holds only its hash.
	runnerKey := os.Getenv("RUNNER_KEY")
	if runnerKey == "" {
		logger.Error("RUNNER_KEY not set")
		os.Exit(1)
	}

	pollURL := os.Getenv("POLL_SERVICE_URL")
	if pollURL == "" {
		logger.Error("POLL_SERVICE_URL not set")
		os.Exit(1)
	}
	pollKey := os.Getenv("POLL_SERVICE_KEY")

	cfg := docker.DefaultConfig()
	if img := os.Getenv("REFEREE_IMAGE"); img != "" {
		cfg.Image = img
	}

	games, err := docker.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize docker executor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer games.Close()

	w := &worker{
		api:    newAPIClient(apiURL, runnerKey),
		poll:   gitpoll.New(pollURL, pollKey),
		games:  games,
		logger: logger,
	}

	// Cancel the loop's context on SIGINT/SIGTERM; an in-flight match
	// finishes (or times out) before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker starting", slog.String("api", apiURL))
	w.run(ctx)
	logger.Info("worker stopped")
}

// run is the main loop. Errors are logged and retried after a backoff —
// a worker should survive the API restarting or the polling service
// hiccuping without human attention.
func (w *worker) run(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		worked, err := w.step(ctx)
		if err != nil {
			w.logger.Error("worker step failed", slog.String("error", err.Error()))
		}

		if !worked {
			select {
			case <-time.After(idleBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// step processes at most one matchup. It reports whether any work was found,
// so the caller knows when to back off.
func (w *worker) step(ctx context.Context) (bool, error) {
	matchup, err := w.api.nextMatchup(ctx)
	if err != nil || matchup == nil {
		return false, err
	}

	w.logger.Info("working matchup",
		slog.Int64("matchupID", matchup.MatchupID),
		slog.String("playerOne", matchup.PlayerOne.Username),
		slog.String("playerTwo", matchup.PlayerTwo.Username),
	)

	// Fetch both submissions once; every match of the matchup reuses them.
	one, err := w.fetchSubmission(ctx, matchup.PlayerOne)
	if err != nil {
		return true, err
	}
	two, err := w.fetchSubmission(ctx, matchup.PlayerTwo)
	if err != nil {
		return true, err
	}

	// Claim and play until this matchup has no queued matches left. Another
	// worker may be draining the same matchup; a nil claim just means it got
	// there first.
	for {
		claimed, err := w.api.claimMatch(ctx, matchup.MatchupID)
		if err != nil {
			return true, err
		}
		if claimed == nil {
			return true, nil
		}

		if err := w.playMatch(ctx, claimed, one, two); err != nil {
			w.logger.Error("match failed",
				slog.Int64("matchID", claimed.MatchID),
				slog.String("error", err.Error()),
			)
			// Leave the match in-progress and move on; operators can requeue
			// or cancel it. Returning stops us from burning the whole matchup
			// on a broken submission.
			return true, nil
		}
	}
}

func (w *worker) fetchSubmission(ctx context.Context, player service.RunnerPlayer) (executor.Submission, error) {
	files, err := w.poll.SubmissionFiles(ctx, player.Username, player.Commit)
	if err != nil {
		return executor.Submission{}, err
	}
	return executor.Submission{Username: player.Username, Files: files}, nil
}

func (w *worker) playMatch(ctx context.Context, claimed *service.ClaimedMatch, one, two executor.Submission) error {
	result, err := w.games.Play(ctx, executor.MatchRequest{
		StartTrace: claimed.StartTrace,
		PlayerOne:  one,
		PlayerTwo:  two,
	})
	if err != nil {
		return err
	}

	w.logger.Info("match played",
		slog.Int64("matchID", claimed.MatchID),
		slog.Int64("boardID", claimed.BoardID),
		slog.Int("winner", result.Winner),
		slog.Duration("duration", result.Duration),
	)

	return w.api.submitResult(ctx, claimed.MatchID, result.Winner, result.TraceP1Starts, result.TraceP2Starts)
}
