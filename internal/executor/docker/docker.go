package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/code-battles/internal/executor"
)

// Executor implements the executor.Executor interface using Docker.
//
// Each match gets a fresh container from a pre-warmed pool. Both submissions
// are copied in as a tar archive under /work/one and /work/two, the referee
// is exec'd once per starting side, and the container is removed afterwards —
// nothing a submission writes survives its own match.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates a new Docker Executor and initializes the connection.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Make sure the referee image is pulled
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring referee image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)
	logger.Info("referee image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// gameOutcome is the referee's JSON report for a single game.
// Winner is relative to player one regardless of who started.
type gameOutcome struct {
	Winner int    `json:"winner"` // 1, -1 or 0
	Trace  string `json:"trace"`
}

// Play runs a full match: two games from the same opening trace, player one
// starting the first and player two the second.
//
// The match winner is whoever won more games; a split (or two draws) is a
// match draw.
func (e *Executor) Play(ctx context.Context, req executor.MatchRequest) (*executor.MatchResult, error) {
	start := time.Now()

	// Get a pre-warmed container ID from the pool
	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// Always ensure we clean up the container that we acquired
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	if err := e.copySubmissions(ctx, containerID, req); err != nil {
		return nil, err
	}

	first, err := e.playGame(ctx, containerID, req.StartTrace, "one")
	if err != nil {
		return nil, fmt.Errorf("game with player one starting: %w", err)
	}

	second, err := e.playGame(ctx, containerID, req.StartTrace, "two")
	if err != nil {
		return nil, fmt.Errorf("game with player two starting: %w", err)
	}

	winner := 0
	switch sum := first.Winner + second.Winner; {
	case sum > 0:
		winner = 1
	case sum < 0:
		winner = -1
	}

	return &executor.MatchResult{
		Winner:        winner,
		TraceP1Starts: first.Trace,
		TraceP2Starts: second.Trace,
		Duration:      time.Since(start),
	}, nil
}

// copySubmissions tars both players' files and copies them into the container
// under /work/one and /work/two.
func (e *Executor) copySubmissions(ctx context.Context, containerID string, req executor.MatchRequest) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	write := func(side string, sub executor.Submission) error {
		for name, contents := range sub.Files {
			hdr := &tar.Header{
				Name: path.Join(side, name),
				Mode: 0o644,
				Size: int64(len(contents)),
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if _, err := tw.Write([]byte(contents)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write("one", req.PlayerOne); err != nil {
		return fmt.Errorf("archiving player one submission: %w", err)
	}
	if err := write("two", req.PlayerTwo); err != nil {
		return fmt.Errorf("archiving player two submission: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing submission archive: %w", err)
	}

	if err := e.cli.CopyToContainer(ctx, containerID, "/work", &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copying submissions into container: %w", err)
	}
	return nil
}

// playGame execs the referee once. first names the starting side ("one" or
// "two"); the referee reports the winner relative to player one either way.
func (e *Executor) playGame(ctx context.Context, containerID, startTrace, first string) (*gameOutcome, error) {
	gameCtx, cancel := context.WithTimeout(ctx, e.config.GameTimeout)
	defer cancel()

	// The container idles on `sleep infinity`, so each game is a docker exec.
	execConfig := container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd: []string{
			"python", "/opt/referee/play.py",
			"--board", startTrace,
			"--first", first,
			"--one", "/work/one",
			"--two", "/work/two",
		},
	}

	execResp, err := e.cli.ContainerExecCreate(gameCtx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(gameCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// Use stdcopy to demultiplex stdout from stderr
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	select {
	case <-done:
	case <-gameCtx.Done():
		return nil, fmt.Errorf("game timed out after %s", e.config.GameTimeout)
	}

	inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspectResp.ExitCode != 0 {
		return nil, fmt.Errorf("referee exited with code %d: %s", inspectResp.ExitCode, stderr.String())
	}

	var outcome gameOutcome
	if err := json.Unmarshal(stdout.Bytes(), &outcome); err != nil {
		return nil, fmt.Errorf("decoding referee output: %w", err)
	}
	if outcome.Winner < -1 || outcome.Winner > 1 {
		return nil, fmt.Errorf("referee reported invalid winner %d", outcome.Winner)
	}

	return &outcome, nil
}
