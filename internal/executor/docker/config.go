package docker

import (
	"time"
)

// Config holds the configuration for Docker match execution.
type Config struct {
	// Image is the referee image. It must contain the game referee at
	// /opt/referee/play.py; submissions are copied in under /work.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// GameTimeout is the maximum wall time for a single game. A match plays
	// two games, so a match can take up to twice this.
	GameTimeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides sensible defaults for the referee sandbox.
func DefaultConfig() Config {
	return Config{
		Image: "code-battles-referee:latest",
		// 256 MB memory limit — two players' processes share the container
		MemoryLimit: 256 * 1024 * 1024,
		// 1 CPU so a busy-looping submission can't starve the referee
		CPULimit:    1.0,
		GameTimeout: 60 * time.Second,
		PoolSize:    2,
	}
}
