package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/dshills/appevent/internal/config"
)

// NewLogger builds the process logger described by cfg, writing to w
// (stderr when nil). The returned LevelVar changes the level at run time.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, *slog.LevelVar, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), level, nil
}

// ComponentLogger returns l tagged with the component name.
func ComponentLogger(l *slog.Logger, component string) *slog.Logger {
	return l.With("component", component)
}
