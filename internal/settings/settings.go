// Package settings loads the configuration shared by the relay and peer commands.
//
// Values are resolved in order: defaults, the YAML file, then environment
// variables prefixed with HIVE_. Command line flags are applied on top by the caller.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables.
const EnvPrefix = "HIVE_"

type Settings struct {
	// RelayAddress is where peers connect to.
	RelayAddress string `yaml:"relay_address" env:"RELAY_ADDRESS"`
	// ListenAddress is where the relay listens.
	ListenAddress string `yaml:"listen_address" env:"LISTEN_ADDRESS"`
	// LogPath is the game log file to watch.
	LogPath string `yaml:"log_path" env:"LOG_PATH"`
	// PollInterval is how often the game log is checked.
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// ConnectTimeout bounds connecting to the relay.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	// Host runs the relay in the peer process.
	Host bool `yaml:"host" env:"HOST"`
	// StatusFile is the server list file to keep updated. Empty disables it.
	StatusFile string `yaml:"status_file" env:"STATUS_FILE"`
	Icons      Icons  `yaml:"icons" envPrefix:"ICONS_"`
	// LogLevel is a [slog.Level] name.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Icons are paths to PNG icons for the status entry.
type Icons struct {
	NoHosts   string `yaml:"no_hosts" env:"NO_HOSTS"`
	ManyHosts string `yaml:"many_hosts" env:"MANY_HOSTS"`
}

// Default returns the default settings.
func Default() Settings {
	return Settings{
		RelayAddress:   "127.0.0.1:52700",
		ListenAddress:  ":52700",
		LogPath:        "logs/latest.log",
		PollInterval:   5 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Icons: Icons{
			NoHosts:   "assets/icons/NoHosts.png",
			ManyHosts: "assets/icons/ManyHosts.png",
		},
		LogLevel: "INFO",
	}
}

// Load reads settings from the YAML file at path and the environment.
// An empty path skips the file.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		if err := s.readFile(path); err != nil {
			return s, err
		}
	}

	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return s, fmt.Errorf("parse environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}

	return s, nil
}

func (s *Settings) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}

	return nil
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(s.RelayAddress); err != nil {
		errs = append(errs, fmt.Errorf("relay address: %w", err))
	}
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, fmt.Errorf("listen address: %w", err))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if s.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("connect timeout must be positive"))
	}
	if _, err := s.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("log level: %w", err)
	}

	return level, nil
}
