package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nodegraph_poc/src/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger = zerolog.Nop()

// componentLevels overrides the root level for named components
var componentLevels = map[string]zerolog.Level{}

// InitLogger configures the root logger and per-component levels.
// Components without an override log at the root level.
func InitLogger(config model.LogConfig) error {
	root, err := parseLevel(config.Level, zerolog.InfoLevel)
	if err != nil {
		return err
	}
	levels := map[string]zerolog.Level{}
	if config.DatastoreLevel != "" {
		lvl, err := parseLevel(config.DatastoreLevel, root)
		if err != nil {
			return err
		}
		levels["datastore"] = lvl
	}

	// the global level is the floor; loggers carry their own level above it
	floor := root
	for _, lvl := range levels {
		floor = min(floor, lvl)
	}
	zerolog.SetGlobalLevel(floor)
	zerolog.TimeFieldFormat = timeFormat(config.TimeFormat)

	output, err := openOutput(config)
	if err != nil {
		return err
	}

	Logger = New(output, config.Format).Level(root)
	componentLevels = levels
	log.Logger = Logger

	Logger.Debug().
		Str("level", root.String()).
		Str("format", config.Format).
		Str("output", config.Output).
		Int("overrides", len(levels)).
		Msg("logger ready")

	return nil
}

func parseLevel(s string, fallback zerolog.Level) (zerolog.Level, error) {
	if s == "" {
		return fallback, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return fallback, fmt.Errorf("invalid log level '%s': %w", s, err)
	}
	return level, nil
}

func timeFormat(name string) string {
	switch strings.ToLower(name) {
	case "unix":
		return zerolog.TimeFormatUnix
	case "iso8601":
		return "2006-01-02T15:04:05.000Z07:00"
	default:
		return time.RFC3339
	}
}

// New builds a logger writing to w in the given format (console or json)
func New(w io.Writer, format string) zerolog.Logger {
	if strings.ToLower(format) == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).With().
		Timestamp().
		Caller().
		Logger()
}

func openOutput(config model.LogConfig) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", config.FilePath, err)
		}
		return file, nil
	default:
		return os.Stdout, nil
	}
}

// Component returns the root logger tagged with a component name, at the
// component's own level when one is configured
func Component(name string) zerolog.Logger {
	l := Logger.With().Str("component", name).Logger()
	if lvl, ok := componentLevels[name]; ok {
		l = l.Level(lvl)
	}
	return l
}

func Debug() *zerolog.Event {
	return Logger.Debug()
}

func Info() *zerolog.Event {
	return Logger.Info()
}

func Warn() *zerolog.Event {
	return Logger.Warn()
}

func Error() *zerolog.Event {
	return Logger.Error()
}

func Fatal() *zerolog.Event {
	return Logger.Fatal()
}
