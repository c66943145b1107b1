//go:build linux

package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// listenBacklog is the kernel accept-queue backlog size for each worker's
// listener socket.
const listenBacklog = 4096

// NewReusePortListener creates a non-blocking, IPv4 TCP socket bound to
// host:port with SO_REUSEADDR and SO_REUSEPORT set, so that one call per
// worker all bind the same address and the kernel fans incoming
// connections out across them. The returned fd is registered with the
// worker's own epoll instance under ListenerToken.
func NewReusePortListener(host string, port int) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("SO_REUSEADDR: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("SO_REUSEPORT: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set nonblocking: %w", err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}
	var addr unix.SockaddrInet4
	addr.Port = port
	copy(addr.Addr[:], ip.To4())

	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}

	return fd, nil
}

// setTCPNoDelay enables TCP_NODELAY on an accepted socket, best-effort.
func setTCPNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}
