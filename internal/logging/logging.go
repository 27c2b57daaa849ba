// Package logging builds the slog loggers shared by the text-synth packages.
//
// Library packages accept a *slog.Logger in their options and fall back to
// Nop, so they stay silent unless the command wires a real logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel names the environment variable that selects the log level.
const EnvLevel = "TEXT_SYNTH_LOG_LEVEL"

// nopHandler discards every record. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Nop returns a logger that discards all output.
func Nop() *slog.Logger { return slog.New(nopHandler{}) }

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown or empty names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// FromEnv returns a stderr logger whose level comes from flagLevel, or from
// TEXT_SYNTH_LOG_LEVEL when flagLevel is empty. Stdout stays free for
// command output.
func FromEnv(flagLevel string) *slog.Logger {
	if flagLevel == "" {
		flagLevel = os.Getenv(EnvLevel)
	}
	return New(os.Stderr, ParseLevel(flagLevel))
}
