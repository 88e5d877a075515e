package integrationtest

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/logpoller"
	"github.com/dmksnnk/hive/internal/peer"
	"github.com/dmksnnk/hive/internal/relay"
	"github.com/dmksnnk/hive/internal/status"
	"golang.org/x/sync/errgroup"
)

// PollInterval is the log poll interval of test peers.
const PollInterval = 10 * time.Millisecond

// GameLog writes log lines the way the game does.
type GameLog struct {
	path string
}

// NewGameLog creates an empty log file.
func NewGameLog(t *testing.T) *GameLog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "latest.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("create game log: %s", err)
	}

	return &GameLog{path: path}
}

func (g *GameLog) Path() string {
	return g.path
}

// StartHosting logs opening the game to LAN on port.
func (g *GameLog) StartHosting(t *testing.T, port uint16) {
	t.Helper()
	g.write(t, "main/INFO", fmt.Sprintf("Started serving on %d", port))
}

// StopHosting logs leaving the hosted game.
func (g *GameLog) StopHosting(t *testing.T) {
	t.Helper()
	g.write(t, "Server thread/INFO", "Stopping singleplayer server as player logged out")
}

// Noise logs something unrelated to hosting.
func (g *GameLog) Noise(t *testing.T) {
	t.Helper()
	g.write(t, "Render thread/INFO", "Reloading ResourceManager: vanilla")
}

// Restart truncates the log like a new game session does.
func (g *GameLog) Restart(t *testing.T) {
	t.Helper()

	if err := os.Truncate(g.path, 0); err != nil {
		t.Fatalf("truncate game log: %s", err)
	}
}

// RestartHosting replaces the log with a new session which is already hosting on port.
// The poller never sees the log in between.
func (g *GameLog) RestartHosting(t *testing.T, port uint16) {
	t.Helper()

	tmp := g.path + ".new"
	line := logLine("main/INFO", fmt.Sprintf("Started serving on %d", port))
	if err := os.WriteFile(tmp, []byte(line), 0o644); err != nil {
		t.Fatalf("write game log: %s", err)
	}

	if err := os.Rename(tmp, g.path); err != nil {
		t.Fatalf("replace game log: %s", err)
	}
}

func (g *GameLog) write(t *testing.T, thread, msg string) {
	t.Helper()

	f, err := os.OpenFile(g.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open game log: %s", err)
	}
	defer f.Close()

	if _, err := f.WriteString(logLine(thread, msg)); err != nil {
		t.Fatalf("write game log: %s", err)
	}
}

func logLine(thread, msg string) string {
	return fmt.Sprintf("[%s] [%s]: %s\n", time.Now().Format("15:04:05"), thread, msg)
}

// StartRelay runs a relay on a loopback port until the test ends.
func StartRelay(t *testing.T, opts ...relay.Option) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}

	r := relay.NewRelay(opts...)

	var eg errgroup.Group
	eg.Go(func() error {
		return r.Serve(ln)
	})

	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("close relay: %s", err)
		}

		if err := eg.Wait(); err != nil {
			t.Errorf("serve relay: %s", err)
		}
	})

	return ln.Addr().String()
}

// Peer is a running peer: a log poller and a relay session.
type Peer struct {
	Sink     *status.ChanSink
	Controls *gate.Controls

	eg errgroup.Group
}

// StartPeer connects a peer watching log to the relay.
func StartPeer(t *testing.T, relayAddr string, log *GameLog) *Peer {
	t.Helper()

	p := &Peer{
		Sink:     status.NewChanSink(),
		Controls: gate.NewControls(),
	}

	cfg := peer.Config{
		Controls:       p.Controls,
		ConnectTimeout: time.Second,
		Sink:           p.Sink,
	}

	sess, err := cfg.Connect(context.Background(), relayAddr)
	if err != nil {
		t.Fatalf("connect peer: %s", err)
	}

	poller := logpoller.Poller{
		Path:     log.Path(),
		Interval: PollInterval,
	}

	events := make(chan logpoller.Event)
	p.eg.Go(func() error {
		return poller.Run(p.Controls, events)
	})
	p.eg.Go(func() error {
		return sess.Run(events)
	})

	t.Cleanup(func() {
		if err := p.Stop(); err != nil {
			t.Errorf("stop peer: %s", err)
		}
		sess.Close()
	})

	return p
}

// Stop shuts the peer down and waits for it. It can be called more than once.
func (p *Peer) Stop() error {
	p.Controls.Shutdown()
	return p.eg.Wait()
}

// Expect waits for the next status command and checks it.
func (p *Peer) Expect(t *testing.T, kind status.Kind, addr string) {
	t.Helper()

	select {
	case cmd := <-p.Sink.Commands():
		if cmd.Kind != kind {
			t.Fatalf("expected %s, got %s", kind, cmd)
		}
		if addr != "" && cmd.Addr.String() != addr {
			t.Fatalf("expected address %s, got %s", addr, cmd.Addr)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for %s", kind)
	}
}

// ExpectNothing checks that no status command arrives for a few poll intervals.
func (p *Peer) ExpectNothing(t *testing.T) {
	t.Helper()

	select {
	case cmd := <-p.Sink.Commands():
		t.Fatalf("unexpected command %s", cmd)
	case <-time.After(20 * PollInterval):
	}
}
