package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/county-rates-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/m-mizutani/clog"
	"golang.org/x/term"
)

// NewLogger builds the service logger on stdout from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default. The json and text formats come from
// the shared observability package; console, and auto on a terminal, use
// clog's colored output.
func NewLogger(cfg *config.Config) *slog.Logger {
	switch strings.ToLower(cfg.LogFormat) {
	case "console":
		return setDefault(consoleLogger(os.Stdout, cfg.LogLevel))
	case "auto":
		if isTerminal(os.Stdout) {
			return setDefault(consoleLogger(os.Stdout, cfg.LogLevel))
		}
		return sharedobs.NewLogger(cfg.LogLevel, "json")
	default:
		return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
}

func setDefault(logger *slog.Logger) *slog.Logger {
	slog.SetDefault(logger)
	return logger
}

func consoleLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(clog.New(
		clog.WithWriter(w),
		clog.WithLevel(ParseLevel(level)),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
	))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ParseLevel maps a LOG_LEVEL value to a slog level, ignoring case and
// defaulting to info.
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
