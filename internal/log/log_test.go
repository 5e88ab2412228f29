package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{" warn ", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"", log.ErrorLevel},
		{"chatty", log.ErrorLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.name), "ParseLevel(%q)", tt.name)
	}
}

func TestHandler_HandleLog(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf)
	h.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	logger := &log.Logger{Handler: h, Level: log.DebugLevel}
	logger.WithFields(log.Fields{"key": "abc", "hit": true}).Debug("opened entry")

	assert.Equal(t, "2025-01-02 03:04:05 D opened entry hit=true key=abc\n", buf.String())
}

func TestInitLogger_EnvWins(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	InitLogger("error")
	t.Cleanup(func() { log.SetLevel(log.ErrorLevel) })

	logger, ok := log.Log.(*log.Logger)
	require.True(t, ok)
	assert.Equal(t, log.DebugLevel, logger.Level)
	assert.IsType(t, &Handler{}, logger.Handler)
}
