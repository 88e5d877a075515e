// Package gate provides a cooperative open/closed signal used to stop and
// pause long-running goroutines.
package gate

import "sync"

// Gate is a two-state synchronization primitive.
// Waiters block while the gate is closed and are all released when it opens.
type Gate struct {
	mu    sync.Mutex
	open  bool
	ready chan struct{} // closed while the gate is open
}

// New creates a gate in the given state.
func New(open bool) *Gate {
	g := &Gate{
		ready: make(chan struct{}),
	}
	if open {
		g.open = true
		close(g.ready)
	}

	return g
}

// Open opens the gate and releases all current waiters.
// Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open {
		return
	}

	g.open = true
	close(g.ready)
}

// Close closes the gate. Nobody is woken up.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return
	}

	g.open = false
	g.ready = make(chan struct{})
}

// IsOpen reports whether the gate is currently open.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.open
}

// Ready returns a channel which is closed once the gate is open.
// The returned channel belongs to the current closed period: if the gate is
// closed again after it opened, call Ready again to wait for the next opening.
func (g *Gate) Ready() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.ready
}

// Wait blocks until the gate is open.
func (g *Gate) Wait() {
	<-g.Ready()
}
