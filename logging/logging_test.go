package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "debug", "production")
	log.WithField("request_id", "r1").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "r1", entry["request_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNew_UnknownLevelIsInfo(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{}, "loud", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isText := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, logrus.StandardLogger(), FromContext(ctx))
	assert.Empty(t, RequestID(ctx))

	l := logrus.New().WithField("k", "v")
	ctx = WithLogger(WithRequestID(ctx, "abc"), l)
	assert.Equal(t, l, FromContext(ctx))
	assert.Equal(t, "abc", RequestID(ctx))
	assert.Len(t, NewRequestID(), 36)
}
