//go:build !unix

package main

import (
	"context"
	"log/slog"

	"github.com/dmksnnk/hive/internal/gate"
)

// watchSignals does nothing, there are no pause and reload signals on this platform.
func watchSignals(ctx context.Context, controls *gate.Controls, logger *slog.Logger, reload func()) {
	<-ctx.Done()
}
