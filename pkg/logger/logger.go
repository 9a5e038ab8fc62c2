// Package logger builds zerolog loggers that carry OpenTelemetry trace ids.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	FieldService   = "svc"
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a service logger writing JSON to stderr.
func New(service, level string) zerolog.Logger {
	return NewWithWriter(os.Stderr, service, level)
}

func NewWithWriter(w io.Writer, service, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str(FieldService, service).
		Logger()
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR onto zerolog levels. Anything else is INFO.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component tags the logger with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

// FromContext adds the trace and span ids of the active span, if any.
func FromContext(ctx context.Context, l zerolog.Logger) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &l
	}
	out := l.With().
		Str(FieldTraceID, sc.TraceID().String()).
		Str(FieldSpanID, sc.SpanID().String()).
		Logger()
	return &out
}
