package settings_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmksnnk/hive/internal/settings"
	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	got, err := settings.Load("")
	if err != nil {
		t.Fatalf("load: %s", err)
	}

	if diff := cmp.Diff(settings.Default(), got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.yaml")
	content := `relay_address: 192.168.1.2:9000
log_path: /games/logs/latest.log
poll_interval: 2s
host: true
icons:
  no_hosts: /icons/none.png
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %s", err)
	}

	t.Setenv("HIVE_POLL_INTERVAL", "750ms")
	t.Setenv("HIVE_ICONS_MANY_HOSTS", "/icons/many.png")
	t.Setenv("HIVE_STATUS_FILE", "/games/servers.yaml")

	got, err := settings.Load(path)
	if err != nil {
		t.Fatalf("load: %s", err)
	}

	want := settings.Default()
	want.RelayAddress = "192.168.1.2:9000"
	want.LogPath = "/games/logs/latest.log"
	want.PollInterval = 750 * time.Millisecond
	want.Host = true
	want.StatusFile = "/games/servers.yaml"
	want.Icons = settings.Icons{NoHosts: "/icons/none.png", ManyHosts: "/icons/many.png"}
	want.LogLevel = "debug"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	level, err := got.Level()
	if err != nil {
		t.Fatalf("level: %s", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("expected level %s, got %s", slog.LevelDebug, level)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	write := func(t *testing.T, content string) string {
		t.Helper()

		path := filepath.Join(dir, t.Name()+".yaml")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %s", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write settings: %s", err)
		}
		return path
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := settings.Load(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	tests := map[string]string{
		"invalid yaml":        "relay_address: [",
		"relay address":       "relay_address: nowhere",
		"zero poll interval":  "poll_interval: 0s",
		"negative timeout":    "connect_timeout: -1s",
		"unknown level":       "log_level: loud",
		"invalid listen addr": "listen_address: 52700",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := settings.Load(write(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	t.Run("invalid env", func(t *testing.T) {
		t.Setenv("HIVE_POLL_INTERVAL", "often")

		if _, err := settings.Load(""); err == nil {
			t.Fatal("expected error")
		}
	})
}
