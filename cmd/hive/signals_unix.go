//go:build unix

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmksnnk/hive/internal/gate"
)

// watchSignals toggles pause on SIGUSR1 and calls reload, if set, on SIGHUP.
func watchSignals(ctx context.Context, controls *gate.Controls, logger *slog.Logger, reload func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sig)

	handleSignals(ctx, sig, controls, logger, reload)
}

// handleSignals runs until ctx is done. reload must not block, or the
// following signals wait for it.
func handleSignals(ctx context.Context, sig <-chan os.Signal, controls *gate.Controls, logger *slog.Logger, reload func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			switch s {
			case syscall.SIGUSR1:
				if controls.IsPaused() {
					controls.Resume()
					logger.Info("resumed")
				} else {
					controls.Pause()
					logger.Info("paused")
				}
			case syscall.SIGHUP:
				if reload != nil {
					reload()
				}
			}
		}
	}
}
