package status

import (
	"errors"
	"log/slog"
)

// Sink shows the status to the player.
type Sink interface {
	Apply(Command) error
}

// SinkFunc is an adapter to use a function as a [Sink].
type SinkFunc func(Command) error

func (f SinkFunc) Apply(cmd Command) error {
	return f(cmd)
}

// Multi applies commands to all sinks.
// It applies to every sink even if some fail and returns all errors joined.
type Multi []Sink

func (m Multi) Apply(cmd Command) error {
	var errs []error
	for _, s := range m {
		if err := s.Apply(cmd); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LogSink logs commands.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Apply(cmd Command) error {
	attrs := []any{
		slog.String("status", cmd.Title()),
		slog.Int("hosts", cmd.Hosts),
	}
	if cmd.Kind == SetToOneHost {
		attrs = append(attrs, slog.String("addr", cmd.Addr.String()))
	}

	s.Logger.Info("status changed", attrs...)
	return nil
}

// ChanSink sends commands to a channel.
type ChanSink struct {
	cmds chan Command
}

// NewChanSink creates a new ChanSink.
func NewChanSink() *ChanSink {
	return &ChanSink{
		cmds: make(chan Command, 1),
	}
}

// Commands returns a channel that receives commands.
func (s *ChanSink) Commands() <-chan Command {
	return s.cmds
}

// Apply sends the command to the channel without blocking.
// If the channel is full, the pending command is replaced, so the
// receiver always gets the latest one.
// Apply must not be called concurrently.
func (s *ChanSink) Apply(cmd Command) error {
	for {
		select {
		case s.cmds <- cmd:
			return nil
		default:
		}

		select {
		case <-s.cmds:
		default:
		}
	}
}
