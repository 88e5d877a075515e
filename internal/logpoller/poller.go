// Package logpoller watches a growing game log file and reports when the
// local game starts or stops hosting a LAN session.
package logpoller

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/dmksnnk/hive/internal/gate"
)

// DefaultInterval is the default polling interval.
const DefaultInterval = 5 * time.Second

// portOffset is where the port starts in a "Started serving on" line,
// right after the fixed-width timestamp and thread prefix.
const portOffset = 43

var (
	startedPattern = regexp.MustCompile(`\[..:..:..\] \[main/INFO\]: Started serving on `)
	stoppedPattern = regexp.MustCompile(`\[..:..:..\] \[Server thread/INFO\]: Stopping singleplayer server as player logged out`)
)

// ErrMalformedPort is returned when a "started serving" line carries a port
// that can't be parsed.
var ErrMalformedPort = errors.New("logpoller: malformed port")

// EventKind is the kind of hosting change.
type EventKind uint8

const (
	StartedHosting EventKind = iota + 1
	StoppedHosting
)

// Event is a change of the local hosting status.
type Event struct {
	Kind EventKind
	Port uint16 // set for StartedHosting
}

func (e Event) String() string {
	switch e.Kind {
	case StartedHosting:
		return fmt.Sprintf("started_hosting(%d)", e.Port)
	case StoppedHosting:
		return "stopped_hosting"
	default:
		return fmt.Sprintf("event(%d)", e.Kind)
	}
}

// Poller periodically scans a log file for hosting changes.
type Poller struct {
	// Path to the log file. The file may not exist yet.
	Path string
	// Interval between polls. Defaults to [DefaultInterval].
	Interval time.Duration
	// Intervals, if set, replaces Interval while running.
	Intervals <-chan time.Duration
	// Logger specifies an optional logger.
	// If nil, [slog.Default] will be used.
	Logger *slog.Logger
}

// cursor remembers how far the file was read.
type cursor struct {
	offset int64
	size   int64
}

// Run polls the file until the controls are shut down. It closes events on return.
// Transient I/O errors are retried on the next poll.
func (p Poller) Run(controls *gate.Controls, events chan<- Event) error {
	defer close(events)

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var cur cursor
	for !controls.IsStopped() {
		select {
		case <-controls.Stopped():
			return nil
		case d, ok := <-p.Intervals:
			if !ok {
				p.Intervals = nil // keep the current interval
				continue
			}
			if d > 0 && d != interval {
				interval = d
				ticker.Reset(interval)
				logger.Debug("poll interval changed", slog.Duration("interval", interval))
			}
			continue
		case <-ticker.C:
		}

		ev, ok, err := poll(p.Path, &cur)
		if err != nil {
			if errors.Is(err, ErrMalformedPort) {
				return err
			}

			logger.Debug("poll log file", slog.String("path", p.Path), slog.Any("error", err))
		}

		if ok {
			logger.Debug("hosting changed", slog.String("event", ev.String()))

			select {
			case events <- ev:
			case <-controls.Stopped():
				return nil
			}
		}

		controls.Yield()
	}

	return nil
}

// poll reads everything appended since the last poll.
// It returns the most recent event found, if any.
func poll(path string, cur *cursor) (Event, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Event{}, false, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Event{}, false, fmt.Errorf("stat: %w", err)
	}

	var (
		result Event
		found  bool
	)

	size := info.Size()
	if size < cur.size { // truncated or rotated, a new game session
		result = Event{Kind: StoppedHosting}
		found = true
		cur.offset = 0
	}
	cur.size = size

	if size == 0 {
		return result, found, nil
	}

	if _, err := f.Seek(cur.offset, io.SeekStart); err != nil {
		return result, found, fmt.Errorf("seek: %w", err)
	}

	ev, ok, n, err := scan(f)
	cur.offset += n
	if ok {
		result, found = ev, true
	}

	return result, found, err
}

// scan matches complete lines from r and returns the last matched event
// and the number of bytes consumed. A trailing line without a newline
// is left for the next poll, it may still be written.
func scan(r io.Reader) (Event, bool, int64, error) {
	var (
		last     Event
		found    bool
		consumed int64
	)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return last, found, consumed, nil
			}
			return last, found, consumed, fmt.Errorf("read: %w", err)
		}
		consumed += int64(len(line))

		ev, ok, err := matchLine(bytes.TrimRight(line, "\r\n"))
		if err != nil {
			return last, found, consumed, err
		}
		if ok {
			last, found = ev, true
		}
	}
}

func matchLine(line []byte) (Event, bool, error) {
	if startedPattern.Match(line) {
		if len(line) < portOffset {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedPort, line)
		}

		port, err := strconv.ParseUint(string(line[portOffset:]), 10, 16)
		if err != nil {
			return Event{}, false, fmt.Errorf("%w: %w", ErrMalformedPort, err)
		}

		return Event{Kind: StartedHosting, Port: uint16(port)}, true, nil
	}

	if stoppedPattern.Match(line) {
		return Event{Kind: StoppedHosting}, true, nil
	}

	return Event{}, false, nil
}
