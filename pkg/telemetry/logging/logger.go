// Package logging configures structured logging for the gateway and
// keeps operator credentials out of log output. Every vendor credential
// here is a live browser session; a leaked log line is a leaked account.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string

	// Format selects the handler (json or text).
	Format string

	// Output is the destination writer; defaults to os.Stderr when nil.
	Output io.Writer
}

// New creates a slog.Logger with a redacting handler and installs it as
// the process default.
func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	var output io.Writer = os.Stderr
	if opts.Output != nil {
		output = opts.Output
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(output, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLevel maps a level name to a slog.Level, defaulting to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// redactAttr is the ReplaceAttr hook applied to every attribute.
func redactAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	if isSensitiveKey(attr.Key) {
		attr.Value = slog.StringValue(RedactCredential(attr.Value.String()))
		return attr
	}
	attr.Value = slog.StringValue(RedactString(attr.Value.String()))
	return attr
}
