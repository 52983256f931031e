package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger writes structured records. Loggers obtained from a Service follow
// every later Service.Apply. The zero Logger discards everything.
type Logger struct {
	out    func() *zerolog.Logger
	fields []Field
}

var nopLogger = zerolog.Nop()

// Nop returns a logger that discards everything but is not IsZero, so
// components keep it instead of substituting their own default.
func Nop() Logger {
	return fixed(&nopLogger)
}

// NewConsole returns a human-readable stderr logger for use before a
// Service exists, e.g. in CLI commands.
func NewConsole(level string) Logger {
	initZerolog()
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = LevelInfo
	}
	zl := zerolog.New(consoleWriter(os.Stderr)).Level(lvl).With().Timestamp().Logger()
	return fixed(&zl)
}

// NewWriter returns a logger writing JSON lines to w.
func NewWriter(w io.Writer, level Level) Logger {
	initZerolog()
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return fixed(&zl)
}

func fixed(zl *zerolog.Logger) Logger {
	return Logger{out: func() *zerolog.Logger { return zl }}
}

func (l Logger) IsZero() bool { return l.out == nil && len(l.fields) == 0 }

func (l Logger) sink() *zerolog.Logger {
	if l.out == nil {
		return &nopLogger
	}
	return l.out()
}

// Enabled reports whether a record at level would be written.
func (l Logger) Enabled(level Level) bool { return level >= l.sink().GetLevel() }

// With returns a child logger that adds fields to every record.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) > 0 {
		l.fields = append(l.fields[:len(l.fields):len(l.fields)], fields...)
	}
	return l
}

func (l Logger) Trace(msg string, fields ...Field) { l.write(LevelTrace, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// write must be called directly from the level methods; the caller frame
// depends on it.
func (l Logger) write(level Level, msg string, fields []Field) {
	e := l.sink().WithLevel(level)
	if e == nil {
		return
	}
	e.Caller(2)
	for _, f := range l.fields {
		f.appendTo(e)
	}
	for _, f := range fields {
		f.appendTo(e)
	}
	e.Msg(msg)
}

// ParseLevel accepts trace, debug, info, warn (or warning) and error in any
// case. An empty string is info.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	case "trace", "debug", "info", "warn", "error":
		return zerolog.ParseLevel(s)
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

var zerologOnce sync.Once

func initZerolog() {
	zerologOnce.Do(func() {
		zerolog.TimeFieldFormat = timeLayout
		zerolog.ErrorFieldName = "err"
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			return filepath.Base(file) + ":" + strconv.Itoa(line)
		}
	})
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: timeLayout}
}
