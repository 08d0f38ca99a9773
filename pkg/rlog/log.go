package rlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// global is the root logger every component logger derives from, set by
// Init.
var global zerolog.Logger

// Level is a string-valued log level, matching the --log-level flag.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		global = zerolog.New(output).With().Timestamp().Logger()
	} else {
		global = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// Logger wraps zerolog.Logger with a variadic key/value helper layer so
// call sites can attach contextual fields (node_id, voters, snapshot_id)
// without building event chains by hand.
type Logger struct {
	zl zerolog.Logger
}

// WithComponent creates a component-scoped Logger.
func WithComponent(component string) Logger {
	return Logger{zl: global.With().Str("component", component).Logger()}
}

func (l Logger) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

// Info logs msg at info level with alternating key/value pairs.
func (l Logger) Info(msg string, kv ...interface{}) { l.event(l.zl.Info(), msg, kv) }

// Debug logs msg at debug level with alternating key/value pairs.
func (l Logger) Debug(msg string, kv ...interface{}) { l.event(l.zl.Debug(), msg, kv) }

// Warn logs msg at warn level with alternating key/value pairs.
func (l Logger) Warn(msg string, kv ...interface{}) { l.event(l.zl.Warn(), msg, kv) }

// Error logs msg at error level with alternating key/value pairs.
func (l Logger) Error(msg string, kv ...interface{}) { l.event(l.zl.Error(), msg, kv) }

// WithComponent narrows an existing Logger to a sub-component.
func (l Logger) WithComponent(component string) Logger {
	return Logger{zl: l.zl.With().Str("component", component).Logger()}
}
