package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmksnnk/hive/internal/gate"
	"github.com/dmksnnk/hive/internal/logpoller"
	"github.com/dmksnnk/hive/internal/peer"
	"github.com/dmksnnk/hive/internal/relay"
	"github.com/dmksnnk/hive/internal/settings"
	"github.com/dmksnnk/hive/internal/status"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, close := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer close()

	var cfg commandConfig
	if err := cfg.Parse(os.Args[1:]); err != nil {
		abort(cfg.FS, err)
	}

	s, err := settings.Load(cfg.Config)
	if err != nil {
		abort(cfg.FS, fmt.Errorf("load settings: %w", err))
	}
	cfg.Apply(&s)

	switch cfg.Command {
	case "relay":
		var relayCfg relayConfig
		if err := relayCfg.Parse(cfg.FS.Args()[1:], &s); err != nil {
			abort(relayCfg.FS, err)
		}

		logger := newLogger(s)
		if err := runRelay(ctx, s, logger); err != nil {
			logger.Error("run relay", slog.Any("error", err))
			os.Exit(1)
		}
	case "peer":
		var peerCfg peerConfig
		if err := peerCfg.Parse(cfg.FS.Args()[1:], &s); err != nil {
			abort(peerCfg.FS, err)
		}

		logger := newLogger(s)
		reload := func() (settings.Settings, error) {
			fresh, err := settings.Load(cfg.Config)
			if err != nil {
				return fresh, err
			}
			if peerCfg.FS.Changed("interval") {
				fresh.PollInterval = s.PollInterval
			}
			return fresh, nil
		}

		if err := runPeer(ctx, s, reload, logger); err != nil {
			if errors.Is(err, peer.ErrConnect) {
				fmt.Fprintf(os.Stderr, "Can't connect to the relay at %s, is it running?\n", s.RelayAddress)
			}
			logger.Error("run peer", slog.Any("error", err))
			os.Exit(1)
		}
	default:
		abort(cfg.FS, fmt.Errorf("unknown command: %s", cfg.Command))
	}

	slog.Info("bye")
}

func newLogger(s settings.Settings) *slog.Logger {
	level, _ := s.Level() // validated on load
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func runRelay(ctx context.Context, s settings.Settings, logger *slog.Logger) error {
	controls := gate.NewControls()
	defer controls.StopOnDone(ctx)()

	r := relay.NewRelay(
		relay.WithLogger(logger.With(slog.String("component", "relay"))),
		relay.WithControls(controls),
	)
	defer r.Close()

	go watchSignals(ctx, controls, logger, nil)

	return r.ListenAndServe(s.ListenAddress)
}

func runPeer(ctx context.Context, s settings.Settings, reload func() (settings.Settings, error), logger *slog.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)

	controls := gate.NewControls()
	defer controls.StopOnDone(ctx)()

	if s.Host {
		ln, err := net.Listen("tcp", s.ListenAddress)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		logger.Info("hosting relay", slog.String("addr", ln.Addr().String()))

		r := relay.NewRelay(
			relay.WithLogger(logger.With(slog.String("component", "relay"))),
			relay.WithControls(controls),
		)
		defer r.Close()

		eg.Go(func() error {
			return r.Serve(ln)
		})
	}

	sinks := status.Multi{status.LogSink{Logger: logger}}
	if s.StatusFile != "" {
		sinks = append(sinks, status.FileSink{Path: s.StatusFile})
	}

	peerCfg := peer.Config{
		Logger:         logger,
		Controls:       controls,
		ConnectTimeout: s.ConnectTimeout,
		Sink:           sinks,
		Icons:          status.LoadIcons(s.Icons.NoHosts, s.Icons.ManyHosts, logger),
	}

	sess, err := peerCfg.Connect(ctx, s.RelayAddress)
	if err != nil {
		controls.Shutdown()
		return errors.Join(err, eg.Wait())
	}
	defer sess.Close()

	logger.Info("connected to relay", slog.String("addr", s.RelayAddress))

	intervals := make(chan time.Duration, 1)
	poller := logpoller.Poller{
		Path:      s.LogPath,
		Interval:  s.PollInterval,
		Intervals: intervals,
		Logger:    logger.With(slog.String("component", "logpoller")),
	}

	events := make(chan logpoller.Event)
	eg.Go(func() error {
		return poller.Run(controls, events)
	})
	eg.Go(func() error {
		return sess.Run(events)
	})

	go watchSignals(ctx, controls, logger, func() {
		fresh, err := reload()
		if err != nil {
			logger.Error("reload settings", slog.Any("error", err))
			return
		}

		setInterval(intervals, fresh.PollInterval)
		logger.Info("settings reloaded", slog.Duration("poll_interval", fresh.PollInterval))
	})

	return eg.Wait()
}

// setInterval hands a new poll interval to the poller without blocking.
// A value the poller has not taken yet is replaced.
// It must not be called concurrently.
func setInterval(intervals chan time.Duration, d time.Duration) {
	for {
		select {
		case intervals <- d:
			return
		default:
		}

		select {
		case <-intervals:
		default:
		}
	}
}
