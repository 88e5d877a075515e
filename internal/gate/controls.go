package gate

import "context"

// Controls bundles the two gates shared by every goroutine of a session.
//
// The stop gate starts closed and is opened once by [Controls.Shutdown];
// it must never be closed again. The pause gate starts open and can be
// toggled with [Controls.Pause] and [Controls.Resume] any number of times.
type Controls struct {
	stop  *Gate
	pause *Gate
}

// NewControls returns running, unpaused controls.
func NewControls() *Controls {
	return &Controls{
		stop:  New(false),
		pause: New(true),
	}
}

// Shutdown signals every goroutine to exit its loop. It is safe to call
// more than once.
func (c *Controls) Shutdown() {
	c.stop.Open()
}

// Stopped returns a channel which is closed after Shutdown.
func (c *Controls) Stopped() <-chan struct{} {
	return c.stop.Ready()
}

// IsStopped reports whether Shutdown was called.
func (c *Controls) IsStopped() bool {
	return c.stop.IsOpen()
}

// Pause makes goroutines wait at their next Yield.
func (c *Controls) Pause() {
	c.pause.Close()
}

// Resume releases goroutines waiting at Yield.
func (c *Controls) Resume() {
	c.pause.Open()
}

// IsPaused reports whether the controls are paused.
func (c *Controls) IsPaused() bool {
	return !c.pause.IsOpen()
}

// Yield is the per-iteration pause point. It returns immediately when not
// paused, otherwise it blocks until resumed or shut down.
func (c *Controls) Yield() {
	select {
	case <-c.pause.Ready():
	case <-c.stop.Ready():
	}
}

// StopOnDone shuts the controls down when ctx is done.
// The returned function detaches ctx from the controls.
func (c *Controls) StopOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, c.Shutdown)
}
