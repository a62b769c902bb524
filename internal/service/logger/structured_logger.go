package logger

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/ports"
)

type contextKey string

// correlationIDKey is the context key the HTTP middleware stores the
// request correlation id under.
const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID returns a context carrying the request correlation
// id; every log entry made with that context includes it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation id stored on the context, if any
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Config configures the structured logger
type Config struct {
	Level       string
	Format      string // json or text
	ServiceName string
}

type structuredLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

// NewStructuredLogger creates a logrus-backed structured logger
func NewStructuredLogger(config Config) ports.Logger {
	logrusLogger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrusLogger.SetLevel(level)

	if config.Format == "json" {
		logrusLogger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logrusLogger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	}

	logrusLogger.SetOutput(os.Stdout)

	return &structuredLogger{
		logger: logrusLogger,
		fields: map[string]interface{}{
			"service": config.ServiceName,
		},
	}
}

func (l *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, fields).Info(message)
}

func (l *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, fields).Warn(message)
}

func (l *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	entry := l.entry(ctx, fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

func (l *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, fields).Debug(message)
}

func (l *structuredLogger) entry(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	merged := logrus.Fields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok && correlationID != "" {
		merged["correlation_id"] = correlationID
	}
	return l.logger.WithFields(merged)
}
