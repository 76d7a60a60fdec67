package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"support-bot/internal/config"
)

// New creates a *slog.Logger from cfg and sets it as the default logger.
//
// Records go to os.Stderr and, when cfg.File is set, to that file as well.
// The file is truncated on every start unless cfg.Append is true.
// Format "json" produces JSON output; anything else is text with source info.
// The returned close function releases the log file.
func New(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	var (
		out     io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := openLogFile(path, cfg.Append)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	logger := slog.New(newHandler(out, cfg))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func newHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: !strings.EqualFold(cfg.Format, "json"),
	}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func openLogFile(path string, appendMode bool) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	return f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
