//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// eventsBufSize is the readiness selector's event buffer capacity.
const eventsBufSize = 1024

// ReactorConfig bundles the per-worker sizing knobs the reactor needs; it
// mirrors internal/config.Config's Pool and Timeouts sections without
// importing that package, keeping internal/reactor free of a dependency on
// internal/config.
type ReactorConfig struct {
	BufSize         int
	MaxConns        int
	MaxRecycledBufs int
	MaxRequestSize  int
	ConnTimeout     time.Duration
	PollTimeout     time.Duration
}

// Reactor is one worker's sovereign, single-threaded event loop: it owns
// its listener, its connection table, and its pools, and shares only the
// RPS counter slot assigned to workerID with its peers.
type Reactor struct {
	workerID   int
	epfd       int
	listenerFD int
	response   []byte
	logger     *slog.Logger

	bufPool   *BufferPool
	tokenPool *TokenPool
	slab      *Slab
	timeouts  *TimeoutScheduler
	counter   *RPSCounter

	connTimeout    time.Duration
	pollTimeout    time.Duration
	maxRequestSize int

	closeList []Token
}

// NewReactor constructs a worker's reactor around an already-bound,
// non-blocking listener fd (see NewReusePortListener) and registers that
// listener under ListenerToken with the worker's own epoll instance.
func NewReactor(workerID, listenerFD int, cfg ReactorConfig, response []byte, counter *RPSCounter, logger *slog.Logger) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	r := &Reactor{
		workerID:       workerID,
		epfd:           epfd,
		listenerFD:     listenerFD,
		response:       response,
		logger:         logger,
		bufPool:        NewBufferPool(cfg.BufSize, cfg.MaxConns, cfg.MaxRecycledBufs),
		tokenPool:      NewTokenPool(cfg.MaxConns),
		slab:           NewSlab(cfg.MaxConns),
		timeouts:       NewTimeoutScheduler(),
		counter:        counter,
		connTimeout:    cfg.ConnTimeout,
		pollTimeout:    cfg.PollTimeout,
		maxRequestSize: cfg.MaxRequestSize,
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(ListenerToken)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, listenerFD, &ev); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("register listener: %w", err)
	}

	return r, nil
}

// Run drives the event loop until stop is closed: poll, drain due
// timeouts, dispatch events, drain the close list. It always makes
// forward progress even with no I/O, since PollTimeout bounds each poll.
func (r *Reactor) Run(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, eventsBufSize)
	pollMillis := int(r.pollTimeout.Milliseconds())

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, pollMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		now := time.Now()

		r.timeouts.DrainDue(now, r.slab, r.enqueueClose)

		for i := 0; i < n; i++ {
			tok := Token(events[i].Fd)
			if tok == ListenerToken {
				r.acceptLoop(now)
			} else {
				r.handleConnection(tok, now)
			}
		}

		r.drainCloseList()
	}
}

// acceptLoop drains the listener's backlog until would-block.
func (r *Reactor) acceptLoop(now time.Time) {
	for {
		connFD, _, err := unix.Accept4(r.listenerFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			r.logger.Warn("accept error", "worker", r.workerID, "err", err)
			return
		}

		if err := setTCPNoDelay(connFD); err != nil {
			r.logger.Warn("TCP_NODELAY failed", "worker", r.workerID, "err", err)
		}

		tok, ok := r.tokenPool.Acquire()
		if !ok {
			r.logger.Warn("token pool exhausted, dropping connection", "worker", r.workerID)
			unix.Close(connFD)
			continue
		}

		buf := r.bufPool.Acquire()
		if buf == nil {
			r.logger.Warn("buffer pool exhausted, dropping connection", "worker", r.workerID)
			r.tokenPool.Release(tok)
			unix.Close(connFD)
			continue
		}

		conn := newConn(connFD, buf, "", now)

		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(tok)}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, connFD, &ev); err != nil {
			r.logger.Warn("epoll register failed, dropping connection", "worker", r.workerID, "err", err)
			r.bufPool.Release(buf)
			r.tokenPool.Release(tok)
			unix.Close(connFD)
			continue
		}

		r.slab.Insert(tok, conn)
		gen := conn.touch(now)
		r.timeouts.Schedule(tok, gen, now.Add(r.connTimeout))
	}
}

// handleConnection looks up tok (absent means a prior event in this same
// batch already closed it), touches its activity, and drives its state
// machine one step.
func (r *Reactor) handleConnection(tok Token, now time.Time) {
	conn := r.slab.Get(tok)
	if conn == nil {
		return
	}

	gen := conn.touch(now)
	r.timeouts.Schedule(tok, gen, now.Add(r.connTimeout))

	switch conn.State() {
	case StateReading:
		if !r.doRead(tok, conn) {
			return
		}
		if conn.requestComplete() {
			conn.armWrite()
			r.reregister(tok, conn)
			r.doWrite(tok, conn)
		}
	case StateWriting:
		r.doWrite(tok, conn)
	}
}

// doRead reads into the connection's buffer while it has room, reporting
// false if the connection was marked for close.
func (r *Reactor) doRead(tok Token, conn *Conn) bool {
	for conn.readLen < len(conn.readBuf) {
		n, err := unix.Read(conn.fd, conn.readBuf[conn.readLen:])
		switch {
		case err == nil && n == 0:
			r.enqueueClose(tok)
			return false
		case err == nil:
			conn.readLen += n
			if conn.oversized(r.maxRequestSize) {
				r.logger.Warn("oversized request, closing", "worker", r.workerID, "token", int(tok))
				r.enqueueClose(tok)
				return false
			}
		case errors.Is(err, unix.EAGAIN):
			return true
		default:
			r.enqueueClose(tok)
			return false
		}
	}
	// Filled the buffer without completing the request or tripping
	// max_request_size; only reachable when max_request_size > buf_size.
	r.enqueueClose(tok)
	return false
}

// doWrite writes the response while there is room, incrementing this
// worker's RPS slot and reregistering for read-only interest exactly once
// per fully-written request.
func (r *Reactor) doWrite(tok Token, conn *Conn) {
	for conn.writePos < len(r.response) {
		n, err := unix.Write(conn.fd, r.response[conn.writePos:])
		switch {
		case err == nil:
			conn.writePos += n
		case errors.Is(err, unix.EAGAIN):
			return
		default:
			r.enqueueClose(tok)
			return
		}
	}

	r.counter.Increment(r.workerID)
	conn.completeWrite()
	r.reregister(tok, conn)
}

// reregister sets the selector interest to match conn's current state.
// Idempotent under repeated calls.
func (r *Reactor) reregister(tok Token, conn *Conn) {
	events := uint32(unix.EPOLLIN)
	if conn.State() == StateWriting {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(tok)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, conn.fd, &ev); err != nil {
		r.logger.Warn("reregister failed", "worker", r.workerID, "token", int(tok), "err", err)
	}
}

// enqueueClose marks conn for close exactly once and queues tok for
// teardown at the end of this poll iteration.
func (r *Reactor) enqueueClose(tok Token) {
	conn := r.slab.Get(tok)
	if conn == nil || !conn.markClosing() {
		return
	}
	r.closeList = append(r.closeList, tok)
}

// drainCloseList tears down every connection enqueued for close this
// iteration: deregister, close the fd, release the buffer, release the
// token, remove from the slab.
func (r *Reactor) drainCloseList() {
	for _, tok := range r.closeList {
		conn := r.slab.Remove(tok)
		if conn == nil {
			continue
		}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, conn.fd, nil); err != nil {
			r.logger.Warn("deregister failed", "worker", r.workerID, "token", int(tok), "err", err)
		}
		unix.Close(conn.fd)
		r.bufPool.Release(conn.readBuf)
		r.tokenPool.Release(tok)
	}
	r.closeList = r.closeList[:0]
}

// Close tears down the reactor's epoll instance and listener socket. Used
// on worker startup failure and in tests; the steady-state Run loop is
// ended by closing its stop channel instead.
func (r *Reactor) Close() {
	unix.Close(r.epfd)
	unix.Close(r.listenerFD)
}
