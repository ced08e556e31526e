package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*SquadLogger)(nil)
	_ Logger = NoOpLogger{}
)

func newBufferedLogger(level LogLevel) (*SquadLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	return NewLogger(cfg), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestSquadLogger_KeyValueArgs(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelInfo)

	l.Info("message received", "role", "intelligence_analyst", "message_type", "processed_intelligence")

	entry := decodeLine(t, buf)
	assert.Equal(t, "message received", entry["msg"])
	assert.Equal(t, "intelligence_analyst", entry["role"])
	assert.Equal(t, "processed_intelligence", entry["message_type"])
}

func TestSquadLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestSquadLogger_ContextualClones(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelInfo)

	scoped := l.WithComponent("bus").WithRole("collection_manager").WithContext("drone_id", "UAV-001")
	scoped.Info("drone command sent")

	entry := decodeLine(t, buf)
	assert.Equal(t, "bus", entry["component"])
	assert.Equal(t, "collection_manager", entry["agent_role"])
	assert.Equal(t, "UAV-001", entry["drone_id"])

	// The clone must not leak context back into the parent.
	buf.Reset()
	l.Info("plain")
	entry = decodeLine(t, buf)
	assert.NotContains(t, entry, "component")
	assert.NotContains(t, entry, "drone_id")
}

func TestSquadLogger_LogAuthorityCheck(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelInfo)

	// A passing check logs at debug and is filtered out at info level.
	l.LogAuthorityCheck("intelligence_analyst", "write_cop", true)
	assert.Zero(t, buf.Len())

	l.LogAuthorityCheck("collection_processor", "command_drones", false)
	entry := decodeLine(t, buf)
	assert.Equal(t, "Authority check failed", entry["msg"])
	assert.Equal(t, "collection_processor", entry["role"])
	assert.Equal(t, false, entry["granted"])
}

func TestSquadLogger_LogLLMCall(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelInfo)

	l.LogLLMCall("claude-sonnet-4-20250514", 1200, 350*time.Millisecond, true, nil)
	entry := decodeLine(t, buf)
	assert.Equal(t, "LLM call completed", entry["msg"])
	assert.Equal(t, float64(1200), entry["token_count"])

	buf.Reset()
	l.LogLLMCall("claude-sonnet-4-20250514", 0, time.Millisecond, false, errors.New("rate limited"))
	entry = decodeLine(t, buf)
	assert.Equal(t, "LLM call failed", entry["msg"])
	assert.Equal(t, "rate limited", entry["error"])
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Info("agent started", "role", "mission_planner")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "agent started", entry["msg"])
	assert.Equal(t, "mission_planner", entry["role"])
}
