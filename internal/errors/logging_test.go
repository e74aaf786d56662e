package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return NewLogger(l), buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogErrorIncludesAppContext(t *testing.T) {
	logger, buf := newBufferLogger()

	err := NewDatabaseError("update ticket", fmt.Errorf("locked"))
	logger.LogError(err, "ticket update failed", logrus.Fields{"ticket_id": 4})

	entry := decodeEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "ticket update failed", entry["msg"])
	assert.Equal(t, string(ErrCodeDatabaseQuery), entry["error_code"])
	assert.Equal(t, "update ticket", entry["operation"])
	assert.Equal(t, float64(4), entry["ticket_id"])
}

func TestLogger_LogRetryableError(t *testing.T) {
	logger, buf := newBufferLogger()

	logger.LogRetryableError(WrapRetryable(fmt.Errorf("503"), ErrCodeChannelAPI, "send failed"), "retrying")
	assert.Equal(t, "warning", decodeEntry(t, buf)["level"])

	buf.Reset()
	logger.LogRetryableError(New(ErrCodeInvalidInput, "bad"), "rejected")
	assert.Equal(t, "error", decodeEntry(t, buf)["level"])
}

func TestNewLogger_NilFallback(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger.Logger)
}
