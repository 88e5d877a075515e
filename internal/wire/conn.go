// Package wire implements length-prefixed CBOR framing over a stream connection.
//
// Wire format of a frame (big-endian):
//
//	[0:4] payload length
//	[4:]  payload, a single CBOR item
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxPayload is the maximum size of a frame payload.
const MaxPayload = 64 * 1024

const headerLen = 4

// ErrFrameTooLarge is returned when a frame exceeds [MaxPayload].
var ErrFrameTooLarge = errors.New("wire: frame too large")

// Message is a decoded message which can check itself.
type Message interface {
	Validate() error
}

// Conn is an asymmetric framed connection: it sends Out and receives In.
// Send and Receive can be called concurrently with each other,
// but not concurrently with themselves.
type Conn[Out any, In Message] struct {
	conn net.Conn
	br   *bufio.Reader

	wmu  sync.Mutex
	wbuf []byte
}

// NewConn wraps conn.
func NewConn[Out any, In Message](conn net.Conn) *Conn[Out, In] {
	return &Conn[Out, In]{
		conn: conn,
		br:   bufio.NewReader(conn),
	}
}

// Send encodes msg and writes it as a single frame.
func (c *Conn[Out, In]) Send(msg Out) error {
	payload, err := Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if len(payload) > MaxPayload {
		return ErrFrameTooLarge
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.wbuf = binary.BigEndian.AppendUint32(c.wbuf[:0], uint32(len(payload)))
	c.wbuf = append(c.wbuf, payload...)
	if _, err := c.conn.Write(c.wbuf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Receive reads the next frame and decodes it.
// It returns [io.EOF] if the connection was closed cleanly between frames.
func (c *Conn[Out, In]) Receive() (In, error) {
	var msg In

	var header [headerLen]byte
	if _, err := io.ReadFull(c.br, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return msg, io.EOF
		}
		return msg, fmt.Errorf("read frame header: %w", err)
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxPayload {
		return msg, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return msg, fmt.Errorf("read frame payload: %w", err)
	}

	if err := Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("unmarshal: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return msg, err
	}

	return msg, nil
}

// RemoteAddr returns the remote network address.
func (c *Conn[Out, In]) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
// Any blocked Send or Receive will return an error.
func (c *Conn[Out, In]) Close() error {
	return c.conn.Close()
}
