package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*ChatLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	cfg.AddSource = false
	return NewLogger(cfg), buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestChatLoggerKeyValueArgs(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.Info("session loaded", "node", "loadSession", "message_count", 3)

	entry := lastEntry(t, buf)
	assert.Equal(t, "session loaded", entry["msg"])
	assert.Equal(t, "loadSession", entry["node"])
	assert.Equal(t, float64(3), entry["message_count"])
}

func TestChatLoggerLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	entry := lastEntry(t, buf)
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestChatLoggerContextualAttrs(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	scoped := logger.WithComponent("pipeline").WithSession("s1", "ex-1a2b3c4d")
	scoped.Info("turn complete")

	entry := lastEntry(t, buf)
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "ex-1a2b3c4d", entry["exchange_id"])

	// The parent logger keeps its own empty context.
	buf.Reset()
	logger.Info("plain")
	entry = lastEntry(t, buf)
	assert.NotContains(t, entry, "component")
}

func TestChatLoggerToolAndGraphHelpers(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogToolCall("search_knowledge_base", 12*time.Millisecond, true, nil)
	entry := lastEntry(t, buf)
	assert.Equal(t, "search_knowledge_base", entry["tool_name"])
	assert.Equal(t, true, entry["success"])

	logger.LogGraphRun("loadSession", 14, 80*time.Millisecond, false, errors.New("boom"))
	entry = lastEntry(t, buf)
	assert.Equal(t, "Graph run failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])

	logger.LogLLMCall("gpt-4o-mini", 512, 200*time.Millisecond, true, nil)
	entry = lastEntry(t, buf)
	assert.Equal(t, float64(512), entry["token_count"])
}

func TestNoOpLoggerSatisfiesInterface(t *testing.T) {
	var logger Logger = NoOpLogger{}
	logger.Debug("ignored")
	logger.Info("ignored", "k", "v")
	logger.Warn("ignored")
	logger.Error("ignored")
}
