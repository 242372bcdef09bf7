package session

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggerOptions controls the default zerolog backed logger.
type LoggerOptions struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string
	// Pretty switches to the human friendly console writer.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

type zerologLogger struct {
	log zerolog.Logger
}

// NewLogger builds a Logger on top of zerolog.
func NewLogger(opts LoggerOptions) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).
		Level(ParseLogLevel(opts.Level)).
		With().
		Timestamp().
		Str("component", "erp-session").
		Logger()

	return &zerologLogger{log: zl}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) Logger {
	return &zerologLogger{log: zl}
}

func (l *zerologLogger) Debug(format string, args ...any) {
	l.emit(l.log.Debug(), format, args)
}

func (l *zerologLogger) Info(format string, args ...any) {
	l.emit(l.log.Info(), format, args)
}

func (l *zerologLogger) Warn(format string, args ...any) {
	l.emit(l.log.Warn(), format, args)
}

func (l *zerologLogger) Error(format string, args ...any) {
	l.emit(l.log.Error(), format, args)
}

func (l *zerologLogger) emit(ev *zerolog.Event, format string, args []any) {
	if ev == nil {
		return
	}

	if strings.Contains(format, "%") {
		ev.Msg(fmt.Sprintf(format, args...))
		return
	}

	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			ev = ev.Interface("extra", args[i])
			break
		}
		if err, ok := args[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(format)
}

// ParseLogLevel converts a level name to a zerolog level, defaulting to info.
func ParseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func defLogger() Logger {
	return NewLogger(LoggerOptions{Level: "warn"})
}

// NopLogger discards everything.
func NopLogger() Logger {
	return &zerologLogger{log: zerolog.Nop()}
}
