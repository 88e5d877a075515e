package status

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
)

// IconSize is the required width and height of an icon, in pixels.
const IconSize = 64

// ErrIconSize is returned for icons which are not [IconSize] square.
var ErrIconSize = errors.New("status: icon must be 64x64 pixels")

// Icons holds base64 encoded PNG icons. Empty means no icon.
type Icons struct {
	NoHosts   string
	ManyHosts string
}

// LoadIcons loads both icons. An icon which can't be loaded is logged and left empty.
func LoadIcons(noHostsPath, manyHostsPath string, logger *slog.Logger) Icons {
	load := func(name, path string) string {
		if path == "" {
			return ""
		}

		icon, err := LoadIcon(path)
		if err != nil {
			logger.Warn("skip icon", slog.String("icon", name), slog.String("path", path), slog.Any("error", err))
			return ""
		}

		return icon
	}

	return Icons{
		NoHosts:   load("no_hosts", noHostsPath),
		ManyHosts: load("many_hosts", manyHostsPath),
	}
}

// LoadIcon reads a PNG file, checks its size and returns it base64 encoded,
// standard alphabet without padding.
func LoadIcon(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read icon: %w", err)
	}

	return EncodeIcon(data)
}

// EncodeIcon validates PNG data and encodes it.
func EncodeIcon(data []byte) (string, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode png: %w", err)
	}

	if cfg.Width != IconSize || cfg.Height != IconSize {
		return "", fmt.Errorf("%w: got %dx%d", ErrIconSize, cfg.Width, cfg.Height)
	}

	return base64.RawStdEncoding.EncodeToString(data), nil
}
