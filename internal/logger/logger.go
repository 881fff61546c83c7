package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alkime/callboard/internal/config"
	tea "github.com/charmbracelet/bubbletea"
)

// Level resolves the configured log level.
func Level(cfg *config.Config) slog.Level {
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	if cfg.Env == config.EnvDevelopment {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}

// SetupLogger configures structured JSON logging for the relay server.
func SetupLogger(cfg *config.Config) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level(cfg),
	})

	return setDefault(handler)
}

// SetupTextLogger configures human-readable logging for CLI commands.
func SetupTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return setDefault(handler)
}

// SetupFileLogger routes logging to a file while the TUI owns the terminal.
// The caller closes the returned file.
func SetupFileLogger(path string, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	f, err := tea.LogToFile(path, "callboard")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{
		Level: Level(cfg),
	})

	return setDefault(handler), f, nil
}

func setDefault(handler slog.Handler) *slog.Logger {
	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}
