package relay

import (
	"log/slog"

	"github.com/dmksnnk/hive/internal/gate"
)

type Option func(*Relay)

// WithLogger sets the logger for the relay.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithControls makes the relay stop and pause with the given controls.
// By default the relay has its own controls, shut down by [Relay.Close].
func WithControls(controls *gate.Controls) Option {
	return func(r *Relay) {
		r.controls = controls
	}
}

// WithOutboxSize sets how many status updates may be queued for a peer.
// A peer whose queue is full is disconnected.
// Default is 16.
func WithOutboxSize(size int) Option {
	return func(r *Relay) {
		r.outboxSize = size
	}
}

// WithPeerCountHook sets a function called with the number of connected peers
// every time it changes. It is called from the relay's state goroutine and must not block.
func WithPeerCountHook(fn func(peers int)) Option {
	return func(r *Relay) {
		r.onPeerCount = fn
	}
}
