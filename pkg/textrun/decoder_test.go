package textrun

import (
	"testing"
	"unicode/utf8"

	"chunklog/pkg/outputlog"

	"github.com/stretchr/testify/require"
)

func stdout(ts float64, payload string) outputlog.Chunk {
	return outputlog.Chunk{Source: outputlog.SourceStdout, Timestamp: ts, Payload: []byte(payload)}
}

func decode(chunks ...outputlog.Chunk) []TextRun {
	runs, _ := Decode(outputlog.Log(chunks), DefaultColorState())
	return runs
}

func TestDecode_UTF8Fidelity(t *testing.T) {
	input := "héllo, 世界 🎉 ok\n"
	var log outputlog.Log
	for i := 0; i < len(input); i++ {
		log = append(log, stdout(float64(i), input[i:i+1]))
	}

	runs, _ := Decode(log, DefaultColorState())

	require.Equal(t, input, String(runs))
	// one run per codepoint: ascii bytes close at every timestamp change, multibyte
	// codepoints flush as soon as they complete
	require.Len(t, runs, utf8.RuneCountInString(input))
	for _, run := range runs {
		require.False(t, run.Broken)
		require.LessOrEqual(t, run.Begin, run.End)
	}
}

func TestDecode_CodepointSpanningTimestamps(t *testing.T) {
	runs := decode(
		stdout(1, "a\xe4"),
		stdout(2, "\xb8"),
		stdout(3, "\xadb"),
	)

	require.Equal(t, []TextRun{
		{Begin: 1, End: 1, Text: "a", Style: DefaultColorState()},
		{Begin: 1, End: 3, Text: "中", Style: DefaultColorState()},
		{Begin: 3, End: 3, Text: "b", Style: DefaultColorState()},
	}, runs)
}

func TestDecode_SplitsOnTimestampChange(t *testing.T) {
	runs := decode(stdout(1, "ab"), stdout(2, "cd"))

	require.Len(t, runs, 2)
	require.Equal(t, TextRun{Begin: 1, End: 1, Text: "ab", Style: DefaultColorState()}, runs[0])
	require.Equal(t, TextRun{Begin: 2, End: 2, Text: "cd", Style: DefaultColorState()}, runs[1])
}

func TestDecode_SameTimestampMerges(t *testing.T) {
	runs := decode(stdout(1, "ab"), stdout(1, "cd"))

	require.Len(t, runs, 1)
	require.Equal(t, "abcd", runs[0].Text)
}

func TestDecode_BareContinuationByte(t *testing.T) {
	runs := decode(stdout(5, "\x80"))

	require.Equal(t, []TextRun{
		{Begin: 5, End: 5, Text: "80", Broken: true, Style: DefaultColorState()},
	}, runs)
}

func TestDecode_InvalidCodepointReplacedPerByte(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "overlong nul", input: "\xc0\x80", want: "\uFFFD\uFFFD"},
		{name: "surrogate", input: "\xed\xa0\x80", want: "\uFFFD\uFFFD\uFFFD"},
		{name: "above max codepoint", input: "\xf4\x90\x80\x80", want: "\uFFFD\uFFFD\uFFFD\uFFFD"},
		{name: "between valid text", input: "a\xc0\x80é", want: "a\uFFFD\uFFFDé"},
		{name: "literal replacement char", input: "\uFFFD", want: "\uFFFD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := decode(stdout(1, tt.input))

			require.Len(t, runs, 1)
			require.Equal(t, tt.want, runs[0].Text)
			require.False(t, runs[0].Broken)
		})
	}
}

func TestDecode_BrokenBytesBetweenText(t *testing.T) {
	runs := decode(stdout(1, "a\x80b\xffc\xf8"))

	require.Len(t, runs, 6)
	texts := []string{}
	broken := []bool{}
	for _, run := range runs {
		texts = append(texts, run.Text)
		broken = append(broken, run.Broken)
	}
	require.Equal(t, []string{"a", "80", "b", "ff", "c", "f8"}, texts)
	require.Equal(t, []bool{false, true, false, true, false, true}, broken)
}

func TestDecode_InvalidContinuation(t *testing.T) {
	runs := decode(stdout(1, "\xc3A"))

	require.Len(t, runs, 2)
	require.Equal(t, "c3", runs[0].Text)
	require.True(t, runs[0].Broken)
	require.Equal(t, "A", runs[1].Text)
	require.False(t, runs[1].Broken)
}

func TestDecode_InvalidContinuationStartsNewCodepoint(t *testing.T) {
	// E4 B8 is cut short by C3, which itself starts a valid two-byte codepoint
	runs := decode(stdout(1, "\xe4\xb8\xc3\xa9"))

	require.Len(t, runs, 2)
	require.Equal(t, "e4b8", runs[0].Text)
	require.True(t, runs[0].Broken)
	require.Equal(t, "é", runs[1].Text)
}

func TestDecode_IncompleteCodepointAtEnd(t *testing.T) {
	runs := decode(stdout(1, "ok"), stdout(2, "\xe4\xb8"))

	require.Len(t, runs, 2)
	require.Equal(t, "ok", runs[0].Text)
	require.Equal(t, TextRun{Begin: 2, End: 2, Text: "e4b8", Broken: true, Style: DefaultColorState()}, runs[1])
}

func TestDecode_SGRColor(t *testing.T) {
	runs, state := Decode(outputlog.Log{stdout(1, "\x1b[31mhi\x1b[0m")}, DefaultColorState())

	require.Equal(t, []TextRun{
		{Begin: 1, End: 1, Text: "hi", Style: ColorState{FG: 31, BG: 40}},
	}, runs)
	require.Equal(t, DefaultColorState(), state)
}

func TestDecode_SGRFlushesWithPreviousStyle(t *testing.T) {
	runs := decode(stdout(1, "x\x1b[31my"))

	require.Len(t, runs, 2)
	require.Equal(t, "x", runs[0].Text)
	require.Equal(t, DefaultColorState(), runs[0].Style)
	require.Equal(t, "y", runs[1].Text)
	require.Equal(t, 31, runs[1].Style.FG)
}

func TestDecode_SGRParameters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ColorState
	}{
		{name: "foreground", input: "\x1b[32m", want: ColorState{FG: 32, BG: 40}},
		{name: "bright foreground", input: "\x1b[97m", want: ColorState{FG: 97, BG: 40}},
		{name: "background", input: "\x1b[44m", want: ColorState{FG: 37, BG: 44}},
		{name: "bright background", input: "\x1b[107m", want: ColorState{FG: 37, BG: 107}},
		{name: "combined", input: "\x1b[44;91m", want: ColorState{FG: 91, BG: 44}},
		{name: "bold is ignored", input: "\x1b[1;31m", want: ColorState{FG: 31, BG: 40}},
		{name: "256 color is ignored", input: "\x1b[38;5;196m", want: ColorState{FG: 37, BG: 40}},
		{name: "empty resets", input: "\x1b[31;42m\x1b[m", want: ColorState{FG: 37, BG: 40}},
		{name: "empty group resets", input: "\x1b[31;42m\x1b[;33m", want: ColorState{FG: 33, BG: 40}},
		{name: "zero resets", input: "\x1b[31;42m\x1b[0m", want: ColorState{FG: 37, BG: 40}},
		{name: "huge number is ignored", input: "\x1b[99999999999999999999999m", want: ColorState{FG: 37, BG: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, state := Decode(outputlog.Log{stdout(1, tt.input)}, DefaultColorState())
			require.Empty(t, runs)
			require.Equal(t, tt.want, state)
		})
	}
}

func TestDecode_AbortedEscapeIsReplayed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "utf-8 lead byte after introducer", input: "\x1b[é"},
		{name: "no introducer", input: "\x1bx"},
		{name: "non-SGR final byte", input: "\x1b[2J"},
		{name: "private parameter", input: "\x1b[?25l"},
		{name: "control byte inside parameters", input: "\x1b[3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, state := Decode(outputlog.Log{stdout(1, tt.input)}, DefaultColorState())

			require.Equal(t, tt.input, String(runs))
			require.Equal(t, DefaultColorState(), state)
			for _, run := range runs {
				require.False(t, run.Broken)
			}
		})
	}
}

func TestDecode_EscapeRestartsSequence(t *testing.T) {
	runs := decode(stdout(1, "\x1b\x1b[32mok"))

	require.Len(t, runs, 2)
	require.Equal(t, "\x1b", runs[0].Text)
	require.Equal(t, DefaultColorState(), runs[0].Style)
	require.Equal(t, "ok", runs[1].Text)
	require.Equal(t, 32, runs[1].Style.FG)
}

func TestDecode_EscapeSpanningChunks(t *testing.T) {
	runs := decode(stdout(1, "\x1b[3"), stdout(2, "2mx"))

	require.Equal(t, []TextRun{
		{Begin: 2, End: 2, Text: "x", Style: ColorState{FG: 32, BG: 40}},
	}, runs)
}

func TestDecode_UnfinishedEscapeAtEnd(t *testing.T) {
	runs := decode(stdout(1, "ab\x1b[3"))

	require.Len(t, runs, 1)
	require.Equal(t, "ab\x1b[3", runs[0].Text)
}

func TestDecode_AllSourcesShareOneStream(t *testing.T) {
	log := outputlog.Log{
		stdout(1, "\x1b[31mout"),
		{Source: outputlog.SourceStderr, Timestamp: 2, Payload: []byte("err")},
	}

	runs, _ := Decode(log, DefaultColorState())

	require.Len(t, runs, 2)
	require.Equal(t, 31, runs[1].Style.FG, "color set on stdout leaks into stderr")
}

func TestDecodeSource(t *testing.T) {
	log := outputlog.Log{
		stdout(1, "\x1b[31mout"),
		{Source: outputlog.SourceStderr, Timestamp: 2, Payload: []byte("err")},
	}

	runs, _ := DecodeSource(log, outputlog.SourceStderr, DefaultColorState())

	require.Equal(t, []TextRun{{Begin: 2, End: 2, Text: "err", Style: DefaultColorState()}}, runs)
}

func TestDecode_ColorStateIsThreaded(t *testing.T) {
	_, state := Decode(outputlog.Log{stdout(1, "\x1b[35mpurple")}, DefaultColorState())
	require.Equal(t, 35, state.FG)

	runs, _ := Decode(outputlog.Log{stdout(2, "still purple")}, state)
	require.Equal(t, 35, runs[0].Style.FG)

	runs, _ = Decode(outputlog.Log{stdout(2, "fresh")}, DefaultColorState())
	require.Equal(t, DefaultFG, runs[0].Style.FG)
}

func TestDecode_ForwardProgressOnAllBytes(t *testing.T) {
	var payload []byte
	for i := 0; i < 256; i++ {
		payload = append(payload, byte(i))
	}
	var log outputlog.Log
	for i, c := range outputlog.Split(outputlog.SourceStdout, 0, payload) {
		c.Timestamp = float64(i)
		log = append(log, c)
	}

	runs, _ := Decode(log, DefaultColorState())

	require.NotEmpty(t, runs)
	for _, run := range runs {
		require.NotEmpty(t, run.Text)
		require.LessOrEqual(t, run.Begin, run.End)
	}
}

func TestDecoder_Incremental(t *testing.T) {
	d := NewDecoder(DefaultColorState())
	d.Timestamp(1)
	require.NoError(t, d.WriteByte('a'))
	n, err := d.Write([]byte("bc"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Empty(t, d.Runs())

	d.Timestamp(2)
	require.Len(t, d.Runs(), 1)

	d.Flush()
	require.Len(t, d.Runs(), 1)
	require.Equal(t, "abc", d.Runs()[0].Text)
}

func TestHighlight(t *testing.T) {
	runs := decode(stdout(1, "a"), stdout(2, "b"), stdout(3, "c"))

	require.Equal(t, []bool{true, true, false}, Highlight(runs, 2))
	require.Equal(t, []bool{false, false, false}, Highlight(runs, 0))
	require.Equal(t, []bool{true, true, true}, Highlight(runs, 10))
}

func TestCursor(t *testing.T) {
	runs := decode(stdout(1, "a"), stdout(2, "b"), stdout(3, "c"))

	require.Equal(t, 1, Cursor(runs, 2))
	require.Equal(t, -1, Cursor(runs, 2.5))
}

func TestColorState_Classes(t *testing.T) {
	require.Equal(t, "fg37 bg40", DefaultColorState().Classes())
	require.True(t, DefaultColorState().IsDefault())
	require.False(t, ColorState{FG: 31, BG: 40}.IsDefault())
}
