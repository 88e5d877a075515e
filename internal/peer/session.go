// Package peer connects a local game to the relay: it reports local hosting
// changes and shows the aggregate status through a status sink.
package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/logpoller"
	"github.com/dmksnnk/hive/internal/message"
	"github.com/dmksnnk/hive/internal/status"
	"github.com/dmksnnk/hive/internal/wire"
)

// DefaultConnectTimeout bounds connecting to the relay.
const DefaultConnectTimeout = 5 * time.Second

// ErrConnect is returned when the relay can't be reached.
var ErrConnect = errors.New("peer: can't connect to relay")

var errEventsClosed = errors.New("peer: log events closed")

type relayConn = wire.Conn[message.PeerMessage, message.Status]

// Config configures a peer session.
type Config struct {
	// Logger specifies an optional logger.
	// If nil, [slog.Default] will be used.
	Logger *slog.Logger
	// Controls stop and pause the session. If nil, the session has its own,
	// stopped only by [Session.Close].
	Controls *gate.Controls
	// ConnectTimeout defaults to [DefaultConnectTimeout].
	ConnectTimeout time.Duration
	// Sink receives status commands. If nil, they are only logged.
	Sink status.Sink
	// Icons are attached to no hosts and many hosts commands.
	Icons status.Icons
}

// Connect dials the relay at addr.
func (c Config) Connect(ctx context.Context, addr string) (*Session, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "peer"))

	timeout := c.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	logger.Debug("connected to relay", slog.String("addr", conn.RemoteAddr().String()))

	controls := c.Controls
	if controls == nil {
		controls = gate.NewControls()
	}

	sink := c.Sink
	if sink == nil {
		sink = status.LogSink{Logger: logger}
	}

	return &Session{
		conn:     wire.NewConn[message.PeerMessage, message.Status](conn),
		controls: controls,
		sink:     sink,
		icons:    c.Icons,
		logger:   logger,
	}, nil
}

// Session is a connection of a peer to the relay.
type Session struct {
	conn     *relayConn
	controls *gate.Controls
	sink     status.Sink
	icons    status.Icons
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Run announces the peer and then, until the controls are shut down,
// forwards events to the relay and relay status to the sink.
// It returns nil when stopped, or the error which broke the session.
// Closing events while not stopped is an error.
func (s *Session) Run(events <-chan logpoller.Event) error {
	if err := s.conn.Send(message.NewJoined()); err != nil {
		return fmt.Errorf("send joined: %w", err)
	}

	inbound := make(chan message.Status)
	readErr := make(chan error, 1)
	quit := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			st, err := s.conn.Receive()
			if err != nil {
				readErr <- err
				return
			}

			select {
			case inbound <- st:
			case <-quit:
				return
			}
		}
	}()

	defer func() {
		close(quit)
		s.Close() // unblocks Receive
		wg.Wait()
	}()

	for !s.controls.IsStopped() {
		select {
		case <-s.controls.Stopped():
			return nil
		case st := <-inbound:
			s.show(st)
		case ev, ok := <-events:
			if !ok {
				if s.controls.IsStopped() {
					return nil
				}
				return errEventsClosed
			}

			if err := s.report(ev); err != nil {
				return err
			}
		case err := <-readErr:
			if s.controls.IsStopped() {
				return nil
			}
			return fmt.Errorf("receive status: %w", err)
		}

		s.controls.Yield()
	}

	return nil
}

func (s *Session) show(st message.Status) {
	cmd, err := status.CommandFor(st, s.icons)
	if err != nil {
		s.logger.Warn("unexpected status", slog.Any("error", err))
		return
	}

	s.logger.Debug("status", slog.String("command", cmd.String()))
	if err := s.sink.Apply(cmd); err != nil {
		s.logger.Error("apply status", slog.String("command", cmd.String()), slog.Any("error", err))
	}
}

func (s *Session) report(ev logpoller.Event) error {
	var msg message.PeerMessage
	switch ev.Kind {
	case logpoller.StartedHosting:
		msg = message.NewStartedHosting(ev.Port)
	case logpoller.StoppedHosting:
		msg = message.NewStoppedHosting()
	default:
		s.logger.Warn("unknown event", slog.String("event", ev.String()))
		return nil
	}

	s.logger.Debug("report", slog.String("message", msg.String()))
	if err := s.conn.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}

	return nil
}

// Close closes the connection to the relay.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
