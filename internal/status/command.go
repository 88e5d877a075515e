// Package status turns aggregate relay status into commands for a local status sink,
// the place where the player sees whether a game is open.
package status

import (
	"fmt"
	"net/netip"

	"github.com/dmksnnk/hive/internal/message"
)

// Kind is the kind of a sink command.
type Kind uint8

const (
	SetToNoHost Kind = iota + 1
	SetToOneHost
	SetToManyHosts
)

func (k Kind) String() string {
	switch k {
	case SetToNoHost:
		return "set_to_no_host"
	case SetToOneHost:
		return "set_to_one_host"
	case SetToManyHosts:
		return "set_to_many_hosts"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Command tells a [Sink] what to show.
type Command struct {
	Kind Kind
	// Addr is the host address, set only for [SetToOneHost].
	Addr netip.AddrPort
	// Hosts is the number of hosts: 0, 1, or 2 meaning two or more.
	Hosts int
	// Icon is a base64 PNG, may be empty.
	Icon string
}

// CommandFor maps relay status to a sink command with a matching icon.
func CommandFor(st message.Status, icons Icons) (Command, error) {
	switch st.Kind {
	case message.NoHost:
		return Command{Kind: SetToNoHost, Hosts: 0, Icon: icons.NoHosts}, nil
	case message.OneHost:
		addr, ok := st.Address()
		if !ok {
			return Command{}, fmt.Errorf("status %s has no address", st)
		}

		return Command{Kind: SetToOneHost, Addr: addr, Hosts: 1}, nil
	case message.ManyHosts:
		return Command{Kind: SetToManyHosts, Hosts: 2, Icon: icons.ManyHosts}, nil
	default:
		return Command{}, fmt.Errorf("unknown status %s", st)
	}
}

// Title is a short human readable description of the command.
func (c Command) Title() string {
	switch c.Kind {
	case SetToNoHost:
		return "No Games Open"
	case SetToOneHost:
		return "Game Open"
	case SetToManyHosts:
		return "Multiple Games Open"
	default:
		return "Unknown"
	}
}

func (c Command) String() string {
	if c.Kind == SetToOneHost {
		return fmt.Sprintf("%s(%s)", c.Kind, c.Addr)
	}

	return c.Kind.String()
}
