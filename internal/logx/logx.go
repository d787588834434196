package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options controls where records go.
type Options struct {
	Path     string // log file; empty disables the file sink
	Level    string
	Stderr   bool
	RingSize int
}

// Logger bundles the logger with the sinks the caller has to keep around.
type Logger struct {
	*slog.Logger
	Ring  *Ring
	close func() error
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.close == nil {
		return nil
	}
	return l.close()
}

// New builds a fanout logger: file, in-memory ring and optionally stderr.
func New(opts Options) (*Logger, error) {
	level := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: level}

	ring := NewRing(opts.RingSize)
	handlers := []slog.Handler{ring.Handler(level)}
	closer := func() error { return nil }

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir log dir: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, hopts))
		closer = f.Close
	}
	if opts.Stderr {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, hopts))
	}

	return &Logger{
		Logger: slog.New(slogmulti.Fanout(handlers...)),
		Ring:   ring,
		close:  closer,
	}, nil
}

// Discard returns a logger that drops everything; handy for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loggerKey struct{}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
