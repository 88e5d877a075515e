package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dmksnnk/hive/internal/settings"
	"github.com/spf13/pflag"
)

const commandsUsage = `
Commands:
  relay - run the relay peers connect to
  peer  - watch the game log and show whether a game is open`

type commandConfig struct {
	FS *pflag.FlagSet

	Command  string
	Config   string
	LogLevel string
}

func (c *commandConfig) Parse(args []string) error {
	c.FS = pflag.NewFlagSet("hive", pflag.ExitOnError)
	c.FS.SetInterspersed(false) // everything after the command belongs to it
	c.FS.StringVarP(&c.Config, "config", "c", "", "path to YAML settings file")
	c.FS.StringVar(&c.LogLevel, "log-level", "", "log level: DEBUG, INFO, WARN or ERROR (overrides settings)")
	c.FS.Usage = func() {
		fmt.Fprintln(os.Stderr) // newline
		fmt.Fprintln(os.Stderr, "Usage: hive [OPTIONS] COMMAND")
		fmt.Fprintln(os.Stderr, commandsUsage)

		fmt.Fprintln(os.Stderr) // newline
		fmt.Fprintln(os.Stderr, "Global options:")
		c.FS.PrintDefaults()

		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Settings can also be set with %s* environment variables.\n", settings.EnvPrefix)
	}

	if err := c.FS.Parse(args); err != nil {
		return err
	}

	if len(c.FS.Args()) < 1 {
		return errors.New("missing command")
	}

	c.Command = c.FS.Args()[0]

	return nil
}

// Apply overrides loaded settings with global flags.
func (c *commandConfig) Apply(s *settings.Settings) {
	if c.LogLevel != "" {
		s.LogLevel = c.LogLevel
	}
}

type relayConfig struct {
	FS *pflag.FlagSet
}

// Parse parses flags into s, flag defaults are the loaded settings.
func (c *relayConfig) Parse(args []string, s *settings.Settings) error {
	c.FS = pflag.NewFlagSet("relay", pflag.ExitOnError)
	c.FS.Usage = func() {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage: hive relay [OPTIONS]")
		fmt.Fprintln(os.Stderr, "Options:")
		c.FS.PrintDefaults()
	}

	c.FS.StringVarP(&s.ListenAddress, "listen", "l", s.ListenAddress, "address to listen for peers on")

	if err := c.FS.Parse(args); err != nil {
		return err
	}

	return s.Validate()
}

type peerConfig struct {
	FS *pflag.FlagSet
}

// Parse parses flags into s, flag defaults are the loaded settings.
func (c *peerConfig) Parse(args []string, s *settings.Settings) error {
	c.FS = pflag.NewFlagSet("peer", pflag.ExitOnError)
	c.FS.Usage = func() {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage: hive peer [OPTIONS]")
		fmt.Fprintln(os.Stderr, "Options:")
		c.FS.PrintDefaults()
	}

	c.FS.StringVarP(&s.RelayAddress, "relay", "r", s.RelayAddress, "relay address to connect to")
	c.FS.StringVar(&s.LogPath, "log-path", s.LogPath, "game log file to watch")
	c.FS.DurationVar(&s.PollInterval, "interval", s.PollInterval, "how often to check the game log")
	c.FS.DurationVar(&s.ConnectTimeout, "timeout", s.ConnectTimeout, "relay connect timeout")
	c.FS.BoolVar(&s.Host, "host", s.Host, "also run the relay in this process")
	c.FS.StringVar(&s.ListenAddress, "listen", s.ListenAddress, "address for the relay to listen on, with --host")
	c.FS.StringVar(&s.StatusFile, "status-file", s.StatusFile, "server list file to keep updated")
	c.FS.StringVar(&s.Icons.NoHosts, "icon-no-hosts", s.Icons.NoHosts, "64x64 PNG shown when nobody hosts")
	c.FS.StringVar(&s.Icons.ManyHosts, "icon-many-hosts", s.Icons.ManyHosts, "64x64 PNG shown when several peers host")

	if err := c.FS.Parse(args); err != nil {
		return err
	}

	return s.Validate()
}

func abort(fs *pflag.FlagSet, err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fs.Usage()
	os.Exit(2)
}
