package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
)

// Logger is a zerolog logger that knows the structured fields graph
// operations log under: the unit of work, the component, the attribute value
// and its context.
type Logger struct {
	zlog zerolog.Logger
}

type loggerContextKey struct{}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writer = file
	}
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(writer).With().Timestamp().Logger().Level(parseLogLevel(cfg.Level))
	if cfg.EnableCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}, nil
}

// Zerolog returns the underlying zerolog.Logger for collaborators that take
// one directly, such as the engine and the job runner.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// NewComponentLogger returns a child logger tagged with a component name.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", component).Logger()}
}

// WithContext stores the logger on the context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext retrieves the logger from the context, falling back to a plain
// stdout logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zlog: zerolog.New(os.Stdout).With().Timestamp().Logger()}
}

// WithField returns a logger with one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	c := l.zlog.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return &Logger{zlog: c.Logger()}
}

// WithError returns a logger carrying the error.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// WithUnitID tags the logger with a unit-of-work id.
func (l *Logger) WithUnitID(unitID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("unit_id", unitID).Logger()}
}

// WithComponentID tags the logger with a component id.
func (l *Logger) WithComponentID(id engine.ComponentID) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component_id", string(id)).Logger()}
}

// WithValueID tags the logger with an attribute value id.
func (l *Logger) WithValueID(id engine.AttributeValueID) *Logger {
	return &Logger{zlog: l.zlog.With().Str("attribute_value_id", string(id)).Logger()}
}

// WithAttributeContext tags the logger with the value's specificity key.
func (l *Logger) WithAttributeContext(avCtx engine.AttributeContext) *Logger {
	return &Logger{zlog: l.zlog.With().Str("attribute_context", avCtx.String()).Logger()}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
