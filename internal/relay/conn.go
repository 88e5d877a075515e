package relay

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/message"
	"github.com/dmksnnk/hive/internal/wire"
)

var errDropped = errors.New("relay: dropped by aggregator")

type peerConn = wire.Conn[message.Status, message.PeerMessage]

// connRelay moves messages between one peer connection and the aggregator.
type connRelay struct {
	conn     *peerConn
	to       <-chan message.Status
	from     chan<- message.PeerMessage
	controls *gate.Controls
}

// run relays until the connection fails, the aggregator drops the peer or
// the controls are shut down. It closes the connection and from on return.
func (c *connRelay) run() error {
	defer close(c.from)

	inbound := make(chan message.PeerMessage)
	readErr := make(chan error, 1)
	quit := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		// read in a separate goroutine, because it is blocked waiting for frames
		for {
			msg, err := c.conn.Receive()
			if err != nil {
				readErr <- err
				return
			}

			select {
			case inbound <- msg:
			case <-quit:
				return
			}
		}
	}()

	defer func() {
		close(quit)
		c.conn.Close() // unblocks Receive
		wg.Wait()
	}()

	for !c.controls.IsStopped() {
		select {
		case <-c.controls.Stopped():
			return nil
		case status, ok := <-c.to:
			if !ok {
				return errDropped
			}

			if err := c.conn.Send(status); err != nil {
				return fmt.Errorf("send status: %w", err)
			}
		case msg := <-inbound:
			select {
			case c.from <- msg:
			case <-c.controls.Stopped():
				return nil
			}
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("receive message: %w", err)
		}

		c.controls.Yield()
	}

	return nil
}
