package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Loggers write to stderr so a run's logs never interleave with
// report data on stdout. Level comes from REPLAY_LOG_LEVEL (default
// info); REPLAY_LOG_PRETTY=1 switches to the human console format for
// interactive runs.
func NewLogger(component string) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("REPLAY_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return NewLoggerWithLevel(component, level)
}

// NewLoggerWithLevel creates a component logger with an explicit level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	var out io.Writer = os.Stderr
	if os.Getenv("REPLAY_LOG_PRETTY") == "1" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
