// Package relay implements the central relay: it accepts peer connections,
// aggregates their hosting status and broadcasts the aggregate back.
package relay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/message"
	"github.com/dmksnnk/hive/internal/wire"
)

var errClosed = errors.New("relay: closed")

// Relay aggregates hosting status of connected peers.
type Relay struct {
	controls    *gate.Controls
	logger      *slog.Logger
	outboxSize  int
	onPeerCount func(int)

	register chan clientRecord
	aggDone  chan struct{}

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewRelay creates a relay and starts its state goroutine.
// Call [Relay.Serve] to accept peers.
func NewRelay(opts ...Option) *Relay {
	r := Relay{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		outboxSize: 16,
		register:   make(chan clientRecord),
		aggDone:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(&r)
	}

	if r.controls == nil {
		r.controls = gate.NewControls()
	}

	agg := newAggregator(r.controls, r.logger, r.register)
	agg.onPeerCount = r.onPeerCount
	go func() {
		defer close(r.aggDone)
		agg.run()
	}()

	return &r
}

// ListenAndServe listens on the TCP address addr and serves peers.
func (r *Relay) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	r.logger.Info("listening", slog.String("addr", ln.Addr().String()))

	return r.Serve(ln)
}

// Serve accepts peer connections on ln until the relay is closed.
// Temporary accept failures are logged and retried with a backoff.
// It returns an error only if ln is closed by someone else.
// It always closes ln before returning.
func (r *Relay) Serve(ln net.Listener) error {
	defer ln.Close()

	if !r.track() {
		return nil
	}
	defer r.wg.Done()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.controls.Stopped():
			ln.Close() // unblocks Accept
		case <-done:
		}
	}()

	var delay time.Duration
	for !r.controls.IsStopped() {
		conn, err := ln.Accept()
		if err != nil {
			if r.controls.IsStopped() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}

			delay = acceptBackoff(delay)
			r.logger.Warn("accept peer connection", slog.Any("error", err), slog.Duration("retry_in", delay))

			select {
			case <-time.After(delay):
			case <-r.controls.Stopped():
				return nil
			}
			continue
		}
		delay = 0

		if err := r.accept(conn); err != nil {
			conn.Close()
			if errors.Is(err, errClosed) {
				return nil
			}

			r.logger.Warn("reject peer connection", slog.String("remote_addr", conn.RemoteAddr().String()), slog.Any("error", err))
		}

		r.controls.Yield()
	}

	return nil
}

// acceptBackoff doubles the delay between failed accepts, up to a second.
func acceptBackoff(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}

	return min(2*delay, time.Second)
}

// accept registers the connection with the aggregator and starts relaying it.
func (r *Relay) accept(conn net.Conn) error {
	remote, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return fmt.Errorf("parse remote address: %w", err)
	}

	if !r.track() {
		return errClosed
	}

	to := make(chan message.Status, r.outboxSize)
	from := make(chan message.PeerMessage)
	rec := clientRecord{
		to:   to,
		from: from,
		ip:   remote.Addr().Unmap(),
	}

	select {
	case r.register <- rec:
	case <-r.aggDone:
		r.wg.Done()
		return errClosed
	case <-r.controls.Stopped():
		r.wg.Done()
		return errClosed
	}

	cr := &connRelay{
		conn:     wire.NewConn[message.Status, message.PeerMessage](conn),
		to:       to,
		from:     from,
		controls: r.controls,
	}

	go func() {
		defer r.wg.Done()

		if err := cr.run(); err != nil {
			r.logger.Debug("peer connection finished", slog.String("remote_addr", remote.String()), slog.Any("error", err))
		}
	}()

	return nil
}

// Close stops the relay and waits for all peer connections to finish.
// Pending [Relay.Serve] calls return nil.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	r.controls.Shutdown()
	<-r.aggDone
	r.wg.Wait()

	return nil
}

// track counts a goroutine Close must wait for.
// It returns false once Close was called.
func (r *Relay) track() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return false
	}

	r.wg.Add(1)
	return true
}
