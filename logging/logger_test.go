package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*ZapAdapter)(nil)
	_ Logger = (*DialogLogger)(nil)
	_ Logger = NoOpLogger{}
)

func TestDialogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}).
		WithComponent("controller").
		WithSession("s-1")

	l.Debug("hidden")
	l.Info("controller.turn", "phase", "confirm", "duration_ms", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "controller.turn", rec["msg"])
	assert.Equal(t, "controller", rec["component"])
	assert.Equal(t, "s-1", rec["session_id"])
	assert.Equal(t, "confirm", rec["phase"])
	assert.EqualValues(t, 3, rec["duration_ms"])
}

func TestDialogLogger_WithDoesNotMutate(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Format: "text", Output: &buf})
	_ = base.WithComponent("flow")
	base.Warn("x")
	assert.NotContains(t, buf.String(), "component=flow")
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Info("flow.completed", "flow", "invoice")
	l.Error("controller.llm.error", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "flow.completed", entries[0].Message)
	assert.Equal(t, "invoice", entries[0].ContextMap()["flow"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}
