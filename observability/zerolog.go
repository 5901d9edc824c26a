package observability

import (
	"io"

	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerolog returns a Logger writing structured events to w at the given level.
func NewZerolog(w io.Writer, level zerolog.Level) Logger {
	return &zerologLogger{l: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewConsole returns a Logger with human-readable console output, intended for
// CLI use.
func NewConsole(w io.Writer, level zerolog.Level) Logger {
	cw := zerolog.ConsoleWriter{Out: w}
	return &zerologLogger{l: zerolog.New(cw).Level(level).With().Timestamp().Logger()}
}

func (z *zerologLogger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			ev = ev.Str(f.Key(), v)
		case int:
			ev = ev.Int(f.Key(), v)
		case int64:
			ev = ev.Int64(f.Key(), v)
		case error:
			ev = ev.AnErr(f.Key(), v)
		default:
			ev = ev.Interface(f.Key(), v)
		}
	}
	ev.Msg(msg)
}

func (z *zerologLogger) Debug(msg string, fields ...Field) { z.emit(z.l.Debug(), msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...Field)  { z.emit(z.l.Info(), msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...Field)  { z.emit(z.l.Warn(), msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...Field) { z.emit(z.l.Error(), msg, fields) }

func (z *zerologLogger) With(fields ...Field) Logger {
	c := z.l.With()
	for _, f := range fields {
		c = c.Interface(f.Key(), f.Value())
	}
	return &zerologLogger{l: c.Logger()}
}
