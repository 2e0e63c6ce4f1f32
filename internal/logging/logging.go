package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a structured logger with secret redaction, configured from
// LOG_LEVEL and LOG_FORMAT.
func New() *slog.Logger {
	return NewWithLevel(os.Getenv("LOG_LEVEL"))
}

// NewWithLevel returns a logger writing to stdout at the given level.
func NewWithLevel(level string) *slog.Logger {
	return NewWriter(os.Stdout, level, os.Getenv("LOG_FORMAT"))
}

// NewWriter builds a logger on w. Format "json" emits JSON lines; anything else
// emits human-readable tinted text.
func NewWriter(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       lvl,
			ReplaceAttr: redact,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       lvl,
		TimeFormat:  time.RFC3339,
		NoColor:     os.Getenv("NO_COLOR") != "" || w != os.Stdout,
		ReplaceAttr: redact,
	}))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		a.Value = slog.StringValue("[redacted]")
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "key") || strings.Contains(k, "pass")
}
