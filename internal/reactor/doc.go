// Package reactor implements the per-worker, single-threaded, non-blocking
// event loop that is the core of the Vrypt server: readiness-driven socket
// multiplexing, the connection lifecycle state machine, pooled admission
// control (tokens, buffers, slab slots), idle-timeout reaping, and the
// lock-free per-worker request counter with its UDP stats sidecar.
//
// A Worker owns one listener socket (shared with its peers only through the
// kernel's SO_REUSEPORT fan-out), one connection table, and its own pools;
// workers share nothing at runtime except the RPS counter array and the
// immutable response bytes. There are no locks on the hot path.
package reactor
