package relay

import (
	"net/netip"

	"github.com/dmksnnk/hive/internal/message"
)

// connID identifies a peer connection for the lifetime of a relay.
type connID uint64

// hostMap holds the address of every peer currently hosting.
// It is owned by the aggregator goroutine.
type hostMap map[connID]netip.AddrPort

// clamp folds the number of hosts into the three states peers can see:
// zero, one, many.
func clamp(n int) int {
	return min(n, 2)
}

// status derives the aggregate status.
func (m hostMap) status() message.Status {
	switch len(m) {
	case 0:
		return message.NewNoHost()
	case 1:
		for _, addr := range m {
			return message.NewOneHost(addr)
		}
	}

	return message.NewManyHosts()
}

// start records that id hosts on addr.
// It reports whether peers must be notified: the clamped number of hosts changed,
// or the single host changed its address.
func (m hostMap) start(id connID, addr netip.AddrPort) bool {
	before := clamp(len(m))
	prev, existed := m[id]
	m[id] = addr

	if clamp(len(m)) != before {
		return true
	}

	return len(m) == 1 && existed && prev != addr
}

// stop removes id from hosts.
// It reports whether the clamped number of hosts changed.
func (m hostMap) stop(id connID) bool {
	before := clamp(len(m))
	delete(m, id)

	return clamp(len(m)) != before
}
