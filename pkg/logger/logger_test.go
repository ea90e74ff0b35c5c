package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info("server starting", "address", "127.0.0.1:8080", "attempt", 1)

	entry := parseLine(t, buf.String())
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "server starting", entry["msg"])
	assert.Equal(t, "127.0.0.1:8080", entry["address"])
	assert.EqualValues(t, 1, entry["attempt"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", parseLine(t, lines[0])["level"])
	assert.Equal(t, "ERROR", parseLine(t, lines[1])["level"])
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info").With("component", "resolver")

	log.Info("resolved", "code", "abc234")

	entry := parseLine(t, buf.String())
	assert.Equal(t, "resolver", entry["component"])
	assert.Equal(t, "abc234", entry["code"])
}

func TestLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, "info")
	_ = parent.With("component", "child")

	parent.Info("from parent")

	entry := parseLine(t, buf.String())
	_, hasComponent := entry["component"]
	assert.False(t, hasComponent)
}

func TestLogger_OddKeyvalsIgnoresTrailingKey(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info("msg", "key1", "value1", "dangling")

	entry := parseLine(t, buf.String())
	assert.Equal(t, "value1", entry["key1"])
	_, exists := entry["dangling"]
	assert.False(t, exists)
}

func TestDiscard(t *testing.T) {
	// Must not panic and must drop everything silently.
	log := Discard()
	log.Error("goes nowhere", "key", "value")
}
