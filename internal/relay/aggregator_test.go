package relay

import (
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/message"
	"github.com/dmksnnk/hive/internal/platform"
)

func TestAggregatorDropsSlowPeer(t *testing.T) {
	agg := newTestAggregator(t)

	fast := addClient(agg, "10.0.0.1", 4)
	slow := addClient(agg, "10.0.0.2", 0) // nobody reads, every send fails

	agg.handle(item(fast.id, message.NewStartedHosting(25565)))

	want := message.NewOneHost(netip.MustParseAddrPort("10.0.0.1:25565"))
	expectStatus(t, fast.to, want)
	expectClosed(t, slow.to)

	if _, ok := agg.clients[slow.id]; ok {
		t.Fatal("expected slow peer to be removed")
	}
}

func TestAggregatorDroppedHostIsRebroadcast(t *testing.T) {
	agg := newTestAggregator(t)

	first := addClient(agg, "10.0.0.1", 4)
	host := addClient(agg, "10.0.0.2", 1)

	agg.handle(item(host.id, message.NewStartedHosting(1000)))
	expectStatus(t, first.to, message.NewOneHost(netip.MustParseAddrPort("10.0.0.2:1000")))
	// host outbox is full from now on

	agg.handle(item(first.id, message.NewStartedHosting(2000)))

	expectStatus(t, first.to, message.NewManyHosts())
	expectStatus(t, first.to, message.NewOneHost(netip.MustParseAddrPort("10.0.0.1:2000")))

	expectStatus(t, host.to, message.NewOneHost(netip.MustParseAddrPort("10.0.0.2:1000")))
	expectClosed(t, host.to)
}

func TestAggregatorIgnoresDroppedPeer(t *testing.T) {
	agg := newTestAggregator(t)

	other := addClient(agg, "10.0.0.1", 4)
	gone := addClient(agg, "10.0.0.2", 0)

	agg.handle(item(gone.id, message.NewJoined()))
	expectClosed(t, gone.to)

	// messages already in flight from the dropped peer
	agg.handle(item(gone.id, message.NewStartedHosting(1000)))
	if st := agg.hosts.status(); st.Kind != message.NoHost {
		t.Fatalf("expected no hosts, got %s", st)
	}

	agg.handle(platform.Item[connID, message.PeerMessage]{Key: gone.id, Closed: true})
	if agg.sources != 1 {
		t.Fatalf("expected 1 source, got %d", agg.sources)
	}

	select {
	case st := <-other.to:
		t.Fatalf("unexpected status %s", st)
	default:
	}
}

func TestAggregatorDisconnectStopsHosting(t *testing.T) {
	agg := newTestAggregator(t)

	a := addClient(agg, "10.0.0.1", 4)
	b := addClient(agg, "10.0.0.2", 4)

	agg.handle(item(a.id, message.NewStartedHosting(1000)))
	expectStatus(t, a.to, message.NewOneHost(netip.MustParseAddrPort("10.0.0.1:1000")))
	expectStatus(t, b.to, message.NewOneHost(netip.MustParseAddrPort("10.0.0.1:1000")))

	agg.handle(platform.Item[connID, message.PeerMessage]{Key: a.id, Closed: true})

	expectClosed(t, a.to)
	expectStatus(t, b.to, message.NewNoHost())
}

type testClient struct {
	id   connID
	to   chan message.Status
	from chan message.PeerMessage
}

func newTestAggregator(t *testing.T) *aggregator {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := newAggregator(gate.NewControls(), logger, nil)
	t.Cleanup(agg.fanin.Close)

	return agg
}

func addClient(agg *aggregator, ip string, outbox int) testClient {
	c := testClient{
		to:   make(chan message.Status, outbox),
		from: make(chan message.PeerMessage),
	}

	agg.add(clientRecord{
		to:   c.to,
		from: c.from,
		ip:   netip.MustParseAddr(ip),
	})
	c.id = agg.lastID

	return c
}

func item(id connID, msg message.PeerMessage) platform.Item[connID, message.PeerMessage] {
	return platform.Item[connID, message.PeerMessage]{Key: id, Value: msg}
}

func expectStatus(t *testing.T, ch <-chan message.Status, want message.Status) {
	t.Helper()

	select {
	case got, ok := <-ch:
		if !ok {
			t.Fatalf("expected status %s, channel is closed", want)
		}
		if !got.Equal(want) {
			t.Fatalf("expected status %s, got %s", want, got)
		}
	default:
		t.Fatalf("expected status %s, got nothing", want)
	}
}

func expectClosed(t *testing.T, ch <-chan message.Status) {
	t.Helper()

	select {
	case st, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to be closed, got %s", st)
		}
	default:
		t.Fatal("expected channel to be closed")
	}
}
