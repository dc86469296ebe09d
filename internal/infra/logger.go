package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logDir = "logs"

// NewLogger builds the process-wide JSON logger: stdout plus a rotating
// file under logs/, level taken from config. Every record carries the app
// name and version so log shippers can tell deployments apart.
func NewLogger(cfg *Config) *slog.Logger {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		// Fallback to stderr if directory creation fails
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "swap_rfq.log"),
		MaxSize:    10, // Megabytes
		MaxBackups: 3,
		MaxAge:     28, // Days
		Compress:   true,
	}

	// Multi-writer: Log to both file and stdout
	writer := io.MultiWriter(os.Stdout, fileLogger)
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Logging.Level),
	})

	logger := slog.New(handler)
	if cfg.App.Name != "" {
		logger = logger.With(
			slog.String("app", cfg.App.Name),
			slog.String("version", cfg.App.Version),
		)
	}
	return logger
}

// ParseLevel maps the config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
