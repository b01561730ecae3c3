package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggerToFile(t *testing.T) (*Logger, *os.File, func()) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "log-*.jsonl")
	require.NoError(t, err)
	logger, err := New(InfoLevel, f)
	require.NoError(t, err)
	return logger, f, func() { f.Close() }
}

func readLines(t *testing.T, f *os.File) []map[string]interface{} {
	t.Helper()
	require.NoError(t, f.Sync())
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)

	var lines []map[string]interface{}
	for _, raw := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))
		lines = append(lines, m)
	}
	return lines
}

func TestLogger_EmitsMandatoryKeys(t *testing.T) {
	logger, f, cleanup := newLoggerToFile(t)
	defer cleanup()

	logger.Info(CategoryFiltering, "evaluated rules", map[string]interface{}{"request_id": "req-1"})
	logger.Sync()

	lines := readLines(t, f)
	require.Len(t, lines, 1)

	line := lines[0]
	for _, key := range []string{"timestamp", "level", "category", "message", "context"} {
		assert.Contains(t, line, key)
	}
	assert.Equal(t, "FILTERING", line["category"])
	assert.Equal(t, "info", line["level"])

	ctx, ok := line["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "req-1", ctx["request_id"])
}

func TestLogger_OneLinePerCall(t *testing.T) {
	logger, f, cleanup := newLoggerToFile(t)
	defer cleanup()

	logger.Info(CategoryRouting, "one", map[string]interface{}{"request_id": "a"})
	logger.Info(CategoryForwarding, "two", map[string]interface{}{"request_id": "b"})
	logger.Sync()

	lines := readLines(t, f)
	assert.Len(t, lines, 2)
}

func TestLogger_ErrorIncludesErrorInContext(t *testing.T) {
	logger, f, cleanup := newLoggerToFile(t)
	defer cleanup()

	logger.Error(CategoryForwarding, "connection failed", assertError("dial tcp refused"), map[string]interface{}{"request_id": "req-2"})
	logger.Sync()

	lines := readLines(t, f)
	require.Len(t, lines, 1)
	ctx := lines[0]["context"].(map[string]interface{})
	assert.Equal(t, "dial tcp refused", ctx["error"])
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertError(msg string) error { return simpleErr(msg) }
