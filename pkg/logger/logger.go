// Package logger builds the *slog.Logger used across memorag. CLI commands
// get colorized output through charmbracelet/log; the server and batch jobs
// can switch to slog's JSON handler. Provider keys and connection strings
// are masked before any handler sees them.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Redacted replaces the value of a masked attribute.
const Redacted = "[redacted]"

// DefaultRedactKeys are always masked.
var DefaultRedactKeys = []string{"api_key", "authorization", "dsn", "password", "token"}

type config struct {
	level     slog.Level
	pretty    bool
	json      bool
	writer    io.Writer
	component string
	redact    map[string]struct{}
}

// New creates a *slog.Logger from the given options. Without options it
// writes info-level text records to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		writer: os.Stdout,
		redact: make(map[string]struct{}, len(DefaultRedactKeys)),
	}
	for _, k := range DefaultRedactKeys {
		c.redact[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}

	hopts := &slog.HandlerOptions{
		Level:       c.level,
		ReplaceAttr: c.replace,
	}

	var h slog.Handler
	switch {
	case c.json:
		h = slog.NewJSONHandler(c.writer, hopts)

	case c.pretty:
		level := charmlog.InfoLevel
		if c.level <= slog.LevelDebug {
			level = charmlog.DebugLevel
		}
		// charmlog has no ReplaceAttr hook.
		h = &redactHandler{
			Handler: charmlog.NewWithOptions(c.writer, charmlog.Options{
				Level:           level,
				ReportTimestamp: true,
			}),
			keys: c.redact,
		}

	default:
		h = slog.NewTextHandler(c.writer, hopts)
	}

	l := slog.New(h)
	if c.component != "" {
		l = l.With("component", c.component)
	}
	return l
}

func (c *config) replace(_ []string, a slog.Attr) slog.Attr {
	return redactAttr(c.redact, a)
}

func redactAttr(keys map[string]struct{}, a slog.Attr) slog.Attr {
	if _, ok := keys[strings.ToLower(a.Key)]; ok && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// redactHandler masks attributes for handlers without ReplaceAttr.
type redactHandler struct {
	slog.Handler
	keys map[string]struct{}
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(h.keys, a))
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redactAttr(h.keys, a)
	}
	return &redactHandler{Handler: h.Handler.WithAttrs(masked), keys: h.keys}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{Handler: h.Handler.WithGroup(name), keys: h.keys}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
