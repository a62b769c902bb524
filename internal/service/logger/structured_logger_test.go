package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer) *structuredLogger {
	logrusLogger := logrus.New()
	logrusLogger.SetFormatter(&logrus.JSONFormatter{})
	logrusLogger.SetOutput(buf)
	return &structuredLogger{
		logger: logrusLogger,
		fields: map[string]interface{}{"service": "test"},
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-1")

	assert.Equal(t, "req-1", CorrelationID(ctx))
	assert.Empty(t, CorrelationID(context.Background()))
}

func TestLogEntryCarriesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf)
	ctx := WithCorrelationID(context.Background(), "req-42")

	log.Info(ctx, "submission recorded", map[string]interface{}{"event_id": "event-1"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["correlation_id"])
	assert.Equal(t, "event-1", entry["event_id"])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "submission recorded", entry["msg"])
}

func TestLogEntryWithoutCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf)

	log.Warn(context.Background(), "redis unavailable", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, present := entry["correlation_id"]
	assert.False(t, present)
}
