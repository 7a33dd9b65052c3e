// Package logging provides the structured logger used across the
// subsidy node. It wraps slog.Logger with constructors for the
// common output formats and typed attribute helpers for claim
// engine fields.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/blockberries/subsidy/types"
)

// Logger is the structured logger for the subsidy node.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the given handler.
func New(handler slog.Handler) *Logger {
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a new Logger with text output format.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a new Logger with JSON output format.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewJSONHandler(w, opts))
}

// NewDevelopmentLogger returns a text logger at debug level on stderr.
func NewDevelopmentLogger() *Logger {
	return NewTextLogger(os.Stderr, slog.LevelDebug)
}

// NewProductionLogger returns a JSON logger at info level on stdout.
func NewProductionLogger() *Logger {
	return NewJSONLogger(os.Stdout, slog.LevelInfo)
}

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() *Logger {
	return New(nopHandler{})
}

// With returns a new Logger with the given attributes added to every
// log entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithComponent returns a new Logger with a component attribute.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// Common attribute constructors for claim engine fields.

// Component creates a component attribute identifying the source module.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Farmer creates a farmer identity attribute.
func Farmer(f types.FarmerID) slog.Attr {
	return slog.String("farmer", string(f))
}

// ClaimID creates a claim id attribute.
func ClaimID(id types.ClaimID) slog.Attr {
	return slog.Uint64("claim_id", uint64(id))
}

// PeriodAttr creates a period attribute.
func PeriodAttr(p types.Period) slog.Attr {
	return slog.Uint64("period", uint64(p))
}

// AmountAttr creates an amount attribute.
func AmountAttr(a types.Amount) slog.Attr {
	return slog.Uint64("amount", uint64(a))
}

// CodeAttr creates a result code attribute.
func CodeAttr(c types.Code) slog.Attr {
	return slog.String("code", c.String())
}

// Status creates a claim status attribute.
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// Kind creates a transaction kind attribute.
func Kind(k string) slog.Attr {
	return slog.String("kind", k)
}

// Height creates a block height attribute.
func Height(h uint64) slog.Attr {
	return slog.Uint64("height", h)
}

// Count creates a count attribute.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Address creates a listen or dial address attribute.
func Address(addr string) slog.Attr {
	return slog.String("address", addr)
}

// Path creates a filesystem or query path attribute.
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Duration creates a duration attribute in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d.Nanoseconds())/1e6)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Reason creates a reason attribute.
func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}

// nopHandler is a slog.Handler that discards all logs.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
