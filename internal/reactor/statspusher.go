package reactor

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// StatsPusherConfig configures the background UDP statsd-gauge emitter.
type StatsPusherConfig struct {
	Interval time.Duration
	Target   string
	Metric   string
}

// RunStatsPusher binds an ephemeral UDP socket and, every cfg.Interval,
// sends the RPS counter's delta since the last tick to cfg.Target as a
// statsd gauge ("<metric>:<delta>|g"). Bind and address-parse failures are
// terminal for this goroutine; per-tick send failures are ignored, since a
// dropped stats sample does not affect server correctness.
//
// RunStatsPusher blocks until stop is closed; run it in its own goroutine.
func RunStatsPusher(cfg StatsPusherConfig, counter *RPSCounter, logger *slog.Logger, stop <-chan struct{}) {
	sock, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		logger.Error("stats: failed to bind udp socket", "err", err)
		return
	}
	defer sock.Close()

	target, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		logger.Error("stats: invalid target address", "target", cfg.Target, "err", err)
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var buf [64]byte
	var prev uint64

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			total := counter.Total()
			delta := total - prev // wrapping subtraction, correct across uint64 wrap
			prev = total

			msg, err := formatGauge(buf[:0], cfg.Metric, delta)
			if err != nil {
				logger.Warn("stats: message too long for buffer", "metric", cfg.Metric, "delta", delta)
				continue
			}
			_, _ = sock.WriteToUDP(msg, target) // send errors are ignored per tick
		}
	}
}

// formatGauge writes "<metric>:<delta>|g" into dst (reusing its backing
// array) and returns an error if it would overflow the fixed 64-byte
// stack buffer statsd wire messages are built into.
func formatGauge(dst []byte, metric string, delta uint64) ([]byte, error) {
	const maxLen = 64
	out := fmt.Appendf(dst, "%s:%d|g", metric, delta)
	if len(out) > maxLen {
		return nil, fmt.Errorf("stats message exceeds %d bytes", maxLen)
	}
	return out, nil
}
