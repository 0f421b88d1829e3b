package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewHandler(&buf, "json", slog.LevelInfo)
	require.NoError(t, err)

	slog.New(handler).Info("capture finished", "chunks", 3)

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "capture finished", m["msg"])
	require.Equal(t, 3.0, m["chunks"])
}

func TestNewHandler_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewHandler(&buf, "", slog.LevelWarn)
	require.NoError(t, err)

	logger := slog.New(handler)
	logger.Info("hidden")
	logger.Warn("log truncated", "offset", 36)

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `msg="log truncated"`)
	require.Contains(t, buf.String(), "offset=36")
}

func TestNewHandler_UnknownFormat(t *testing.T) {
	_, err := NewHandler(&bytes.Buffer{}, "xml", slog.LevelInfo)
	require.Error(t, err)
}

func TestInit(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	require.NoError(t, Init(&buf, FormatText, slog.LevelDebug))
	slog.Debug("visible")

	require.Contains(t, buf.String(), "msg=visible")
}
