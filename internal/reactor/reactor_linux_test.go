//go:build linux

package reactor

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// startTestWorker binds an ephemeral loopback listener, builds a reactor
// around it, and runs it in the background until the returned stop
// function is called. It returns the bound address.
func startTestWorker(t *testing.T, cfg ReactorConfig) (addr string, counter *RPSCounter, stop func()) {
	t.Helper()

	fd, err := NewReusePortListener("127.0.0.1", 0)
	require.NoError(t, err)

	sa, err := unix.Getsockname(fd)
	require.NoError(t, err)
	inet4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	port := inet4.Port

	counter = NewRPSCounter(1)
	r, err := NewReactor(0, fd, cfg, BuildResponse(), counter, discardLogger())
	require.NoError(t, err)

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(stopCh)
	}()

	stop = func() {
		close(stopCh)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		r.Close()
	}

	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), counter, stop
}

func defaultTestReactorConfig() ReactorConfig {
	return ReactorConfig{
		BufSize:         65536,
		MaxConns:        64,
		MaxRecycledBufs: 16,
		MaxRequestSize:  65536,
		ConnTimeout:     200 * time.Millisecond,
		PollTimeout:     50 * time.Millisecond,
	}
}

func TestE2ESingleRequest(t *testing.T) {
	addr, _, stop := startTestWorker(t, defaultTestReactorConfig())
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	resp := BuildResponse()
	got := make([]byte, len(resp))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, resp, got)

	// connection must stay open (keep-alive): a further read attempt with
	// a short deadline should time out, not see EOF.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.True(t, netErr.Timeout())
	}
}

func TestE2EPipelinedKeepAlive(t *testing.T) {
	addr, counter, stop := startTestWorker(t, defaultTestReactorConfig())
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	_, err = conn.Write(append(append([]byte{}, req...), req...))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reader := bufio.NewReader(conn)
	resp := BuildResponse()
	for i := 0; i < 2; i++ {
		got := make([]byte, len(resp))
		_, err := io.ReadFull(reader, got)
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && counter.Total() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, counter.Total(), uint64(2))
}

func TestE2EOversizedRequestCloses(t *testing.T) {
	cfg := defaultTestReactorConfig()
	cfg.MaxRequestSize = 1024
	cfg.BufSize = 1024

	addr, _, stop := startTestWorker(t, cfg)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	junk := make([]byte, 2048)
	for i := range junk {
		junk[i] = 'x'
	}
	_, _ = conn.Write(junk)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err == nil {
		t.Fatalf("expected connection close, got %d bytes: %q", n, buf[:n])
	}
}

func TestE2EIdleTimeoutCloses(t *testing.T) {
	cfg := defaultTestReactorConfig()
	cfg.ConnTimeout = 150 * time.Millisecond
	cfg.PollTimeout = 30 * time.Millisecond

	addr, _, stop := startTestWorker(t, cfg)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	assert.Error(t, err, "server must close idle connection")
}

func TestE2EAdmissionCapServesUpToMaxConns(t *testing.T) {
	cfg := defaultTestReactorConfig()
	cfg.MaxConns = 4 // token 0 reserved, so 3 usable connection slots

	addr, _, stop := startTestWorker(t, cfg)
	defer stop()

	var conns []net.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < 3; i++ {
		c, err := net.DialTimeout("tcp", addr, 2*time.Second)
		require.NoError(t, err)
		conns = append(conns, c)
	}

	// One more connection beyond capacity: the kernel accepts it off the
	// backlog, but the server has no token/buffer to serve it with, so it
	// is dropped without affecting the in-flight connections below.
	extra, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer extra.Close()

	for _, c := range conns {
		_, err := c.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.NoError(t, err)
	}

	resp := BuildResponse()
	for _, c := range conns {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		got := make([]byte, len(resp))
		_, err := io.ReadFull(c, got)
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	}
}
