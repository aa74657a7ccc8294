// Package logging builds the process slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	Level  string
	Format string
	// File, when set, also receives every record as JSON with source positions.
	File string
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// New returns a logger writing to w, fanned out to opts.File when set. The
// returned closer releases the log file.
func New(w io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if opts.Level != "" {
		var err error
		if level, err = ParseLevel(opts.Level); err != nil {
			return nil, nil, err
		}
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var primary slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		primary = slog.NewTextHandler(w, handlerOpts)
	case "json":
		primary = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	if opts.File == "" {
		return slog.New(primary), nopCloser{}, nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{AddSource: true, Level: level})
	return slog.New(slogmulti.Fanout(primary, file)), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
