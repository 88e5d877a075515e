// Package message defines messages exchanged between peers and the relay.
package message

import (
	"errors"
	"fmt"
	"net/netip"
)

var errUnknownKind = errors.New("message: unknown kind")

// PeerKind is the kind of a message sent by a peer to the relay.
type PeerKind uint8

const (
	// Joined is sent once, right after connecting.
	Joined PeerKind = iota + 1
	// StartedHosting reports that the peer hosts a game on Port.
	StartedHosting
	// StoppedHosting reports that the peer no longer hosts a game.
	StoppedHosting
)

func (k PeerKind) String() string {
	switch k {
	case Joined:
		return "joined"
	case StartedHosting:
		return "started_hosting"
	case StoppedHosting:
		return "stopped_hosting"
	default:
		return fmt.Sprintf("peer_kind(%d)", uint8(k))
	}
}

// PeerMessage is a message from a peer to the relay.
type PeerMessage struct {
	Kind PeerKind `cbor:"1,keyasint"`
	Port uint16   `cbor:"2,keyasint,omitempty"`
}

// NewJoined creates a [Joined] message.
func NewJoined() PeerMessage {
	return PeerMessage{Kind: Joined}
}

// NewStartedHosting creates a [StartedHosting] message.
func NewStartedHosting(port uint16) PeerMessage {
	return PeerMessage{Kind: StartedHosting, Port: port}
}

// NewStoppedHosting creates a [StoppedHosting] message.
func NewStoppedHosting() PeerMessage {
	return PeerMessage{Kind: StoppedHosting}
}

// Validate checks that the message kind is known.
func (m PeerMessage) Validate() error {
	switch m.Kind {
	case Joined, StartedHosting, StoppedHosting:
		return nil
	default:
		return fmt.Errorf("%w: %d", errUnknownKind, m.Kind)
	}
}

func (m PeerMessage) String() string {
	if m.Kind == StartedHosting {
		return fmt.Sprintf("%s(%d)", m.Kind, m.Port)
	}
	return m.Kind.String()
}

// StatusKind is the kind of aggregate hosting status.
type StatusKind uint8

const (
	// NoHost means nobody is hosting.
	NoHost StatusKind = iota + 1
	// OneHost means exactly one peer hosts, at Addr.
	OneHost
	// ManyHosts means two or more peers host.
	ManyHosts
)

func (k StatusKind) String() string {
	switch k {
	case NoHost:
		return "no_host"
	case OneHost:
		return "one_host"
	case ManyHosts:
		return "many_hosts"
	default:
		return fmt.Sprintf("status_kind(%d)", uint8(k))
	}
}

// Status is the aggregate hosting status sent by the relay to peers.
type Status struct {
	Kind StatusKind      `cbor:"1,keyasint"`
	Addr *netip.AddrPort `cbor:"2,keyasint,omitempty"`
}

// NewNoHost creates a [NoHost] status.
func NewNoHost() Status {
	return Status{Kind: NoHost}
}

// NewOneHost creates a [OneHost] status for the host at addr.
func NewOneHost(addr netip.AddrPort) Status {
	return Status{Kind: OneHost, Addr: &addr}
}

// NewManyHosts creates a [ManyHosts] status.
func NewManyHosts() Status {
	return Status{Kind: ManyHosts}
}

// Address returns the host address of a [OneHost] status.
func (s Status) Address() (netip.AddrPort, bool) {
	if s.Kind != OneHost || s.Addr == nil {
		return netip.AddrPort{}, false
	}
	return *s.Addr, true
}

// Validate checks that the status kind is known and that only [OneHost]
// carries a valid address.
func (s Status) Validate() error {
	switch s.Kind {
	case NoHost, ManyHosts:
		if s.Addr != nil {
			return fmt.Errorf("message: %s status with address", s.Kind)
		}
		return nil
	case OneHost:
		if s.Addr == nil || !s.Addr.IsValid() {
			return errors.New("message: one host status without address")
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", errUnknownKind, s.Kind)
	}
}

// Equal reports whether two statuses are the same.
func (s Status) Equal(other Status) bool {
	a, aok := s.Address()
	b, bok := other.Address()
	return s.Kind == other.Kind && aok == bok && a == b
}

func (s Status) String() string {
	if addr, ok := s.Address(); ok {
		return fmt.Sprintf("%s(%s)", s.Kind, addr)
	}
	return s.Kind.String()
}
