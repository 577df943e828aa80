package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphout/internal/config"
)

// TestColorLineWriter_HighlightsLevelAndTokens verifies level and token coloring.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_HighlightsLevelAndTokens(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	line := `level=INFO msg="connected to graphite" addr=10.20.30.40:2003 lines=3`
	n, err := writer.Write([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, len(line), n)

	rendered := dst.String()
	assert.True(t, strings.HasPrefix(rendered, ansiBlue))
	assert.Contains(t, rendered, ansiGreen+`"connected to graphite"`+ansiReset+ansiBlue)
	assert.Contains(t, rendered, ansiCyan+`10.20.30.40:2003`+ansiReset+ansiBlue)
	assert.Contains(t, rendered, ansiYellow+`3`+ansiReset+ansiBlue)
	assert.True(t, strings.HasSuffix(rendered, ansiReset))
}

// TestColorLineWriter_KeepsNewlineLast verifies the reset lands before the newline.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_KeepsNewlineLast(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	_, err := writer.Write([]byte("level=WARN msg=skipping path=cpu.user\n"))
	require.NoError(t, err)

	rendered := dst.String()
	assert.True(t, strings.HasPrefix(rendered, ansiYellow))
	assert.True(t, strings.HasSuffix(rendered, ansiReset+"\n"))
	assert.Contains(t, rendered, "path=cpu.user")
}

// TestColorLineWriter_NoLevelColor verifies passthrough for unknown levels.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_NoLevelColor(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	line := `msg="plain" value=42`
	_, err := writer.Write([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, line, dst.String())
}

// TestParseLevel_Names verifies supported level names including panic.
// Params: testing.T for assertions.
// Returns: none.
func TestParseLevel_Names(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"panic": LevelPanic,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("trace")
	require.Error(t, err)
}

// TestNew_FileSinkWritesJSON verifies the file sink, level filtering and PANIC naming.
// Params: testing.T for assertions.
// Returns: none.
func TestNew_FileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "graphout.log")
	logger, closeFn, err := New(config.LogConfig{
		File: config.LogSinkConfig{Enabled: true, Level: "warn", Format: "json", Path: path},
	})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("graphite connect failed", slog.String("addr", "127.0.0.1:2003"))
	logger.Log(context.Background(), LevelPanic, "boom")
	closeFn()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, `"msg":"graphite connect failed"`)
	assert.Contains(t, content, `"addr":"127.0.0.1:2003"`)
	assert.Contains(t, content, `"level":"PANIC"`)
}

// TestNew_RejectsBadLevel verifies sink level validation.
// Params: testing.T for assertions.
// Returns: none.
func TestNew_RejectsBadLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Console: config.LogSinkConfig{Enabled: true, Level: "loud"}})
	require.Error(t, err)
}

// TestFanoutHandler_RoutesByLevel verifies each sink only receives records it enables.
// Params: testing.T for assertions.
// Returns: none.
func TestFanoutHandler_RoutesByLevel(t *testing.T) {
	var debugSink, errorSink bytes.Buffer
	logger := slog.New(&fanoutHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugSink, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorSink, &slog.HandlerOptions{Level: slog.LevelError}),
	}}).With(slog.String("component", "output"))

	logger.Debug("detail")
	logger.WithGroup("conn").Error("failed", slog.String("op", "dial"))

	assert.Contains(t, debugSink.String(), "msg=detail")
	assert.Contains(t, debugSink.String(), "component=output")
	assert.Contains(t, debugSink.String(), "conn.op=dial")
	assert.NotContains(t, errorSink.String(), "detail")
	assert.Contains(t, errorSink.String(), "msg=failed")
	assert.Contains(t, errorSink.String(), "component=output")
}
