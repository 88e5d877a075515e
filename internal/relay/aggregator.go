package relay

import (
	"log/slog"
	"net/netip"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/message"
	"github.com/dmksnnk/hive/internal/platform"
)

// clientRecord is how the aggregator talks to a connected peer.
type clientRecord struct {
	to   chan message.Status
	from <-chan message.PeerMessage
	ip   netip.Addr
}

// aggregator is the only owner of the host map and the set of connected peers.
// Everything reaches it through channels.
type aggregator struct {
	controls    *gate.Controls
	logger      *slog.Logger
	register    <-chan clientRecord
	onPeerCount func(int)

	lastID    connID
	clients   map[connID]clientRecord
	hosts     hostMap
	fanin     *platform.FanIn[connID, message.PeerMessage]
	sources   int // fan-in sources not closed yet
	lastCount int
}

func newAggregator(controls *gate.Controls, logger *slog.Logger, register <-chan clientRecord) *aggregator {
	return &aggregator{
		controls: controls,
		logger:   logger,
		register: register,
		clients:  make(map[connID]clientRecord),
		hosts:    make(hostMap),
		fanin:    platform.NewFanIn[connID, message.PeerMessage](),
	}
}

func (a *aggregator) run() {
	defer a.fanin.Close()
	defer func() {
		for id := range a.clients {
			a.remove(id)
		}
	}()

	for !a.controls.IsStopped() {
		// with no peers wait only for a new one
		var inbox <-chan platform.Item[connID, message.PeerMessage]
		if a.sources > 0 {
			inbox = a.fanin.C()
		}

		select {
		case <-a.controls.Stopped():
			return
		case rec := <-a.register:
			a.add(rec)
		case item := <-inbox:
			a.handle(item)
		}

		a.reportPeerCount()
		a.controls.Yield()
	}
}

func (a *aggregator) add(rec clientRecord) {
	a.lastID++
	id := a.lastID

	a.clients[id] = rec
	a.fanin.Add(id, rec.from)
	a.sources++

	a.logger.Debug("peer connected", slog.Uint64("id", uint64(id)), slog.String("ip", rec.ip.String()))
}

func (a *aggregator) handle(item platform.Item[connID, message.PeerMessage]) {
	id := item.Key
	if item.Closed {
		a.sources--
		a.disconnect(id)
		return
	}

	rec, ok := a.clients[id]
	if !ok { // already dropped, wait for its connection to close
		return
	}

	msg := item.Value
	a.logger.Debug("peer message", slog.Uint64("id", uint64(id)), slog.String("message", msg.String()))

	switch msg.Kind {
	case message.Joined:
		a.unicast(id, a.hosts.status())
	case message.StartedHosting:
		if a.hosts.start(id, netip.AddrPortFrom(rec.ip, msg.Port)) {
			a.broadcast(a.hosts.status())
		}
	case message.StoppedHosting:
		if a.hosts.stop(id) {
			a.broadcast(a.hosts.status())
		}
	}
}

// disconnect handles a closed peer connection as if it stopped hosting.
func (a *aggregator) disconnect(id connID) {
	a.logger.Debug("peer disconnected", slog.Uint64("id", uint64(id)))

	if a.drop(id) {
		a.broadcast(a.hosts.status())
	}
}

func (a *aggregator) unicast(id connID, status message.Status) {
	rec, ok := a.clients[id]
	if !ok {
		return
	}

	if !send(rec, status) {
		a.logger.Warn("dropping unresponsive peer", slog.Uint64("id", uint64(id)))
		if a.drop(id) {
			a.broadcast(a.hosts.status())
		}
	}
}

// broadcast sends status to every peer. Peers which can't take it are
// dropped, the rest still get it.
func (a *aggregator) broadcast(status message.Status) {
	a.logger.Debug("broadcast", slog.String("status", status.String()), slog.Int("peers", len(a.clients)))

	var failed []connID
	for id, rec := range a.clients {
		if !send(rec, status) {
			failed = append(failed, id)
		}
	}

	changed := false
	for _, id := range failed {
		a.logger.Warn("dropping unresponsive peer", slog.Uint64("id", uint64(id)))
		if a.drop(id) {
			changed = true
		}
	}

	if changed {
		a.broadcast(a.hosts.status())
	}
}

// drop forgets the peer and stops its connection.
// It reports whether the host count changed.
func (a *aggregator) drop(id connID) bool {
	a.remove(id)
	return a.hosts.stop(id)
}

func (a *aggregator) remove(id connID) {
	rec, ok := a.clients[id]
	if !ok {
		return
	}

	delete(a.clients, id)
	close(rec.to)
}

func (a *aggregator) reportPeerCount() {
	count := len(a.clients)
	if count == a.lastCount {
		return
	}
	a.lastCount = count

	a.logger.Info("peers", slog.Int("count", count))
	if a.onPeerCount != nil {
		a.onPeerCount(count)
	}
}

// send never blocks: a full outbox means the peer is not keeping up.
func send(rec clientRecord, status message.Status) bool {
	select {
	case rec.to <- status:
		return true
	default:
		return false
	}
}
