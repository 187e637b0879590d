package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

const LevelTrace slog.Level = -8

// NewLogger returns a slog text logger that renders the custom TRACE level
// and trims source paths to their base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// Trace logs at LevelTrace through the default logger. Encode/Decode hot
// paths call this, so bail out before formatting when the level is off.
func Trace(msg string, args ...any) {
	if logger := slog.Default(); logger.Enabled(context.TODO(), LevelTrace) {
		logger.Log(context.TODO(), LevelTrace, msg, args...)
	}
}
