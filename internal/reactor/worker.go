package reactor

import (
	"fmt"
	"log/slog"
	"time"
)

// WorkerConfig bundles everything one worker needs to build its listener
// and reactor.
type WorkerConfig struct {
	ID   int
	Host string
	Port int

	BufSize         int
	MaxConns        int
	MaxRecycledBufs int
	MaxRequestSize  int
	ConnTimeout     time.Duration
	PollTimeout     time.Duration
}

// RunWorker builds this worker's SO_REUSEPORT listener and reactor and
// runs its event loop until stop is closed or a fatal startup/runtime
// error occurs. Fatal errors are returned to the caller (see Runner.Run),
// which also recovers panics from this function.
func RunWorker(cfg WorkerConfig, response []byte, counter *RPSCounter, logger *slog.Logger, stop <-chan struct{}) error {
	listenerFD, err := NewReusePortListener(cfg.Host, cfg.Port)
	if err != nil {
		return fmt.Errorf("worker %d: listener: %w", cfg.ID, err)
	}

	r, err := NewReactor(cfg.ID, listenerFD, ReactorConfig{
		BufSize:         cfg.BufSize,
		MaxConns:        cfg.MaxConns,
		MaxRecycledBufs: cfg.MaxRecycledBufs,
		MaxRequestSize:  cfg.MaxRequestSize,
		ConnTimeout:     cfg.ConnTimeout,
		PollTimeout:     cfg.PollTimeout,
	}, response, counter, logger)
	if err != nil {
		return fmt.Errorf("worker %d: reactor init: %w", cfg.ID, err)
	}
	defer r.Close()

	logger.Info("worker started", "worker", cfg.ID, "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	return r.Run(stop)
}
