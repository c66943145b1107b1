package reactor

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/vrypt/vrypt-server/internal/config"
)

// Runner orchestrates spawning one reactor worker per logical CPU (or per
// the configured fixed count, which can only reduce that number, never
// raise it), the shared RPS counter, and the UDP stats pusher, then waits
// for shutdown.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run spawns the worker pool and blocks until stop is closed or a worker
// reports a fatal error. Workers share nothing but the RPS counter array
// and the immutable response bytes. A panic in one worker is recovered and
// logged without affecting its peers; a fatal error from any worker is
// logged and returned from Run.
func (r *Runner) Run(cfg *config.Config, stop <-chan struct{}) error {
	numWorkers := r.resolveWorkerCount(cfg)

	response := BuildResponse()
	counter := NewRPSCounter(numWorkers)

	statsStop := make(chan struct{})
	defer close(statsStop)
	go RunStatsPusher(StatsPusherConfig{
		Interval: time.Duration(cfg.Stats.IntervalSeconds) * time.Second,
		Target:   cfg.Stats.Target,
		Metric:   cfg.Stats.Metric,
	}, counter, r.logger, statsStop)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	r.logger.Info("vrypt listening", "addr", addr, "workers", numWorkers)

	errCh := make(chan error, numWorkers)
	var wg sync.WaitGroup
	for id := 0; id < numWorkers; id++ {
		wg.Add(1)
		workerID := id
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("worker panicked", "worker", workerID, "panic", p)
				}
			}()

			err := RunWorker(WorkerConfig{
				ID:              workerID,
				Host:            cfg.Server.Host,
				Port:            cfg.Server.Port,
				BufSize:         cfg.Pool.BufSize,
				MaxConns:        cfg.Pool.MaxConns,
				MaxRecycledBufs: cfg.Pool.MaxRecycledBufs,
				MaxRequestSize:  cfg.Pool.MaxRequestSize,
				ConnTimeout:     time.Duration(cfg.Timeouts.ConnTimeoutSeconds) * time.Second,
				PollTimeout:     time.Duration(cfg.Timeouts.PollTimeoutMillis) * time.Millisecond,
			}, response, counter, r.logger, stop)
			if err != nil {
				r.logger.Error("worker exited", "worker", workerID, "err", err)
				errCh <- err
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-stop:
		<-done
		return nil
	case err := <-errCh:
		return err
	case <-done:
		return nil
	}
}

// resolveWorkerCount sizes the worker pool to runtime.NumCPU(), clamped
// downward (never up) when the configuration fixes a smaller count.
func (r *Runner) resolveWorkerCount(cfg *config.Config) int {
	base := runtime.NumCPU()
	if base < 1 {
		base = 1
	}

	if cfg.Server.Workers.Mode == config.WorkersFixed {
		w := cfg.Server.Workers.Value
		if w <= 0 {
			w = 1
		}
		if w < base {
			base = w
		}
	}

	return base
}
