//go:build !linux

package reactor

import "errors"

// ErrUnsupportedPlatform is returned by NewReusePortListener and the
// reactor event loop on platforms other than Linux. The reactor's hot path
// depends on epoll readiness notification and SO_REUSEPORT fan-out; there
// is no portable substitute that preserves the single-threaded,
// non-blocking, lock-free design this package exists to demonstrate.
var ErrUnsupportedPlatform = errors.New("reactor: epoll-based worker requires linux")

// NewReusePortListener always fails on non-Linux platforms. See
// ErrUnsupportedPlatform.
func NewReusePortListener(host string, port int) (fd int, err error) {
	return -1, ErrUnsupportedPlatform
}

func setTCPNoDelay(fd int) error {
	return ErrUnsupportedPlatform
}
