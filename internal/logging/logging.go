package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func Init() {
	setup(os.Stderr)
}

// InitFile sends logs to path instead of stderr, so they do not corrupt a
// full-screen terminal UI. The caller closes the returned file.
func InitFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	setup(f)
	return f, nil
}

// Discard silences logging entirely.
func Discard() {
	setup(io.Discard)
}

func setup(w io.Writer) {
	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: Level(),
		}),
	)
	slog.SetDefault(logger)
}

// Level reads LOG_LEVEL. Production only shows errors.
func Level() slog.Level {
	level := slog.LevelError

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}
	return level
}
