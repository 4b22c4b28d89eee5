// Package obs sets up this process's logging and tracing: structured
// logs via log/slog, the same library the teacher gateway configures
// inline in cmd/gateway.go, plus an OpenTelemetry tracer that's a no-op
// unless an OTLP endpoint is configured.
package obs

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// Options configures the process logger.
type Options struct {
	// Debug enables slog.LevelDebug; otherwise slog.LevelInfo.
	Debug bool
	// Output is where log records are written. Defaults to os.Stderr.
	Output *os.File
}

// InitLogger installs the process-wide slog default handler: a
// human-readable text handler when Output is an interactive terminal, a
// JSON handler otherwise (the shape a log aggregator expects).
// Mirrors the level-flag/handler wiring cmd/gateway.go does inline,
// pulled out so every opensession command shares one setup.
func InitLogger(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	slog.SetDefault(slog.New(handler))
}
