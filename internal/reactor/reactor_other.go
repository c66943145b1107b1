//go:build !linux

package reactor

import (
	"log/slog"
	"time"
)

// ReactorConfig mirrors the Linux build's field set so callers such as
// RunWorker compile unmodified on every platform; only Run's behavior
// differs.
type ReactorConfig struct {
	BufSize         int
	MaxConns        int
	MaxRecycledBufs int
	MaxRequestSize  int
	ConnTimeout     time.Duration
	PollTimeout     time.Duration
}

// Reactor is an unusable stand-in on non-Linux platforms. See
// ErrUnsupportedPlatform.
type Reactor struct{}

// NewReactor always fails on non-Linux platforms: see ErrUnsupportedPlatform.
func NewReactor(workerID, listenerFD int, cfg ReactorConfig, response []byte, counter *RPSCounter, logger *slog.Logger) (*Reactor, error) {
	return nil, ErrUnsupportedPlatform
}

// Run never runs on non-Linux platforms.
func (r *Reactor) Run(stop <-chan struct{}) error {
	return ErrUnsupportedPlatform
}

// Close is a no-op stand-in.
func (r *Reactor) Close() {}
