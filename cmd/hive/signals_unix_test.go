//go:build unix

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/logpoller"
	"golang.org/x/sync/errgroup"
)

func TestReloadWhilePaused(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	controls := gate.NewControls()

	intervals := make(chan time.Duration, 1)
	poller := logpoller.Poller{
		Path:      filepath.Join(t.TempDir(), "latest.log"),
		Interval:  10 * time.Millisecond,
		Intervals: intervals,
		Logger:    logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal)

	var eg errgroup.Group
	eg.Go(func() error {
		return poller.Run(controls, make(chan logpoller.Event))
	})
	eg.Go(func() error {
		handleSignals(ctx, sig, controls, logger, func() {
			setInterval(intervals, 20*time.Millisecond)
		})
		return nil
	})
	t.Cleanup(func() {
		cancel()
		controls.Shutdown()
		if err := eg.Wait(); err != nil {
			t.Errorf("run poller: %s", err)
		}
	})

	sendSignal(t, sig, syscall.SIGUSR1)
	waitPaused(t, controls, true)
	time.Sleep(50 * time.Millisecond) // poller parks at its pause point

	sendSignal(t, sig, syscall.SIGHUP)
	sendSignal(t, sig, syscall.SIGHUP)
	sendSignal(t, sig, syscall.SIGUSR1)

	waitPaused(t, controls, false)

	deadline := time.Now().Add(time.Second)
	for len(intervals) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected poller to take the new interval")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetInterval(t *testing.T) {
	intervals := make(chan time.Duration, 1)

	setInterval(intervals, time.Second)
	setInterval(intervals, 2*time.Second)

	if got := <-intervals; got != 2*time.Second {
		t.Fatalf("expected latest interval %s, got %s", 2*time.Second, got)
	}
	if len(intervals) != 0 {
		t.Fatal("expected no pending interval")
	}
}

func waitPaused(t *testing.T, controls *gate.Controls, paused bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for controls.IsPaused() != paused {
		if time.Now().After(deadline) {
			t.Fatalf("expected paused to be %t", paused)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// sendSignal fails if the handler does not take the signal in time.
func sendSignal(t *testing.T, sig chan<- os.Signal, s os.Signal) {
	t.Helper()

	select {
	case sig <- s:
	case <-time.After(time.Second):
		t.Fatalf("signal %s not handled", s)
	}
}
