package wire_test

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/netip"
	"testing"

	"github.com/dmksnnk/hive/internal/message"
	"github.com/dmksnnk/hive/internal/wire"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

func TestConnExchange(t *testing.T) {
	a, b := net.Pipe()
	peer := wire.NewConn[message.PeerMessage, message.Status](a)
	relay := wire.NewConn[message.Status, message.PeerMessage](b)
	t.Cleanup(func() {
		peer.Close()
		relay.Close()
	})

	sent := []message.PeerMessage{
		message.NewJoined(),
		message.NewStartedHosting(25565),
		message.NewStoppedHosting(),
	}

	var eg errgroup.Group
	eg.Go(func() error {
		for _, msg := range sent {
			if err := peer.Send(msg); err != nil {
				return err
			}
		}
		return nil
	})

	var received []message.PeerMessage
	for range sent {
		msg, err := relay.Receive()
		if err != nil {
			t.Fatalf("receive: %s", err)
		}
		received = append(received, msg)
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("send: %s", err)
	}

	if diff := cmp.Diff(sent, received); diff != "" {
		t.Errorf("received messages mismatch (-want +got):\n%s", diff)
	}

	statuses := []message.Status{
		message.NewNoHost(),
		message.NewOneHost(netip.MustParseAddrPort("192.0.2.1:12345")),
		message.NewOneHost(netip.MustParseAddrPort("[2001:db8::1]:999")),
		message.NewManyHosts(),
	}

	eg.Go(func() error {
		for _, s := range statuses {
			if err := relay.Send(s); err != nil {
				return err
			}
		}
		return nil
	})

	for _, want := range statuses {
		got, err := peer.Receive()
		if err != nil {
			t.Fatalf("receive: %s", err)
		}
		if !got.Equal(want) {
			t.Errorf("expected status %s, got %s", want, got)
		}
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("send: %s", err)
	}
}

func TestConnReceiveEOF(t *testing.T) {
	a, b := net.Pipe()
	relay := wire.NewConn[message.Status, message.PeerMessage](b)
	t.Cleanup(func() { relay.Close() })

	a.Close()

	_, err := relay.Receive()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got: %v", err)
	}
}

func TestConnRejectsInvalid(t *testing.T) {
	hostAddr := netip.MustParseAddrPort("192.168.1.10:25565")
	tests := map[string][]byte{
		"too large":                frameHeader(wire.MaxPayload + 1),
		"unknown kind":             frame(t, map[int]int{1: 42}),
		"one host without address": frame(t, map[int]int{1: int(message.OneHost)}),
		"garbage":                  append(frameHeader(2), 0xff, 0xff),
		"no host with address":     frame(t, message.Status{Kind: message.NoHost, Addr: &hostAddr}),
		"many hosts with address":  frame(t, message.Status{Kind: message.ManyHosts, Addr: &hostAddr}),
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			a, b := net.Pipe()
			peer := wire.NewConn[message.PeerMessage, message.Status](b)
			t.Cleanup(func() {
				a.Close()
				peer.Close()
			})

			go func() {
				a.Write(raw)
			}()

			if _, err := peer.Receive(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func frameHeader(n int) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(n))
}

func frame(t *testing.T, v any) []byte {
	t.Helper()

	payload, err := wire.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}

	return append(frameHeader(len(payload)), payload...)
}
