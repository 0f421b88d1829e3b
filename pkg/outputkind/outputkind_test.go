package outputkind

import (
	"strings"
	"testing"

	"chunklog/pkg/outputlog"

	"github.com/stretchr/testify/require"
)

func TestDetector_Binary(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "null byte", input: "binary\x00data"},
		{name: "control characters", input: "\x01\x02\x03\x04\x05\x06\x07\x08"},
		{name: "mostly control characters", input: "text\x01\x02\x03\x04\x05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			require.True(t, d.Feed([]byte(tt.input)))

			kind, reason := d.Result()
			require.Equal(t, Binary, kind)
			require.Contains(t, reason, "non-printable")
		})
	}
}

func TestDetector_Fullscreen(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "alternate screen", input: "\x1b[?1049h\x1b[H", reason: "alternate screen"},
		{name: "old alternate screen", input: "\x1b[?47h", reason: "alternate screen"},
		{name: "clear screen", input: "\x1b[H\x1b[2J", reason: "clear screen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, reason := Detect(outputlog.Log{{Source: outputlog.SourceStdout, Payload: []byte(tt.input)}})
			require.Equal(t, Fullscreen, kind)
			require.Contains(t, reason, tt.reason)
		})
	}
}

func TestDetector_Styled(t *testing.T) {
	kind, _ := Detect(outputlog.Log{
		{Source: outputlog.SourceStdout, Payload: []byte("\x1b[32m✔\x1b[0m done\n")},
		{Source: outputlog.SourceStdout, Payload: []byte("\x1b[2Aredrawn\n")},
	})
	require.Equal(t, Styled, kind)
}

func TestDetector_Text(t *testing.T) {
	d := NewDetector()
	for i := 0; i < maxLines-1; i++ {
		require.False(t, d.Feed([]byte("plain line\n")))
	}
	require.True(t, d.Feed([]byte("last line\n")))

	kind, _ := d.Result()
	require.Equal(t, Text, kind)
}

func TestDetector_Markdown(t *testing.T) {
	input := "# Title\n\n- one\n- two\n\nSee [docs](https://example.com) and **this**.\n"
	kind, _ := Detect(outputlog.Log{{Source: outputlog.SourceStdout, Payload: []byte(input)}})
	require.Equal(t, Markdown, kind)
}

func TestDetector_LargeOutputIsDecided(t *testing.T) {
	d := NewDetector()
	require.True(t, d.Feed([]byte(strings.Repeat("x", maxInspect))))

	kind, _ := d.Result()
	require.Equal(t, Text, kind)
}

func TestDetector_EscapeSplitAcrossChunks(t *testing.T) {
	kind, _ := Detect(outputlog.Log{
		{Source: outputlog.SourceStdout, Payload: []byte("\x1b[?10")},
		{Source: outputlog.SourceStdout, Payload: []byte("49h")},
	})
	require.Equal(t, Fullscreen, kind)
}

func TestDetector_NoOutput(t *testing.T) {
	kind, reason := NewDetector().Result()
	require.Equal(t, Unknown, kind)
	require.Equal(t, "no output", reason)
}

func TestDetector_IgnoresOtherStreams(t *testing.T) {
	d := NewDetector()
	require.NoError(t, d.WriteChunk(outputlog.Chunk{Source: outputlog.SourceStderr, Payload: []byte("\x1b[?1049h")}))
	require.NoError(t, d.WriteChunk(outputlog.Chunk{Source: outputlog.SourceStdout, Payload: []byte("hello\n")}))

	kind, _ := d.Result()
	require.Equal(t, Text, kind)
}

func TestDetector_ResultIsStable(t *testing.T) {
	d := NewDetector()
	d.Feed([]byte("\x1b[31mred"))

	first, _ := d.Result()
	second, _ := d.Result()
	require.Equal(t, Styled, first)
	require.Equal(t, first, second)
}

func TestDetector_Sink(t *testing.T) {
	var _ outputlog.Sink = NewDetector()
}
