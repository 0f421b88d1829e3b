// Package textrun turns a timestamped byte stream back into styled text runs.
//
// Decoding is two nested state machines: an ANSI escape parser that recognizes Select
// Graphic Rendition (color) sequences and passes everything else down to a UTF-8
// reassembler, which groups complete codepoints into runs split at timestamp changes.
// Malformed input never fails: stray bytes become "broken" runs holding their hex
// value, and aborted escape sequences are rendered literally.
package textrun

import (
	"chunklog/pkg/outputlog"
)

// TextRun is a span of decoded text (or of undecodable bytes) sharing one timestamp
// range and one color state.
type TextRun struct {
	Begin  float64
	End    float64
	Text   string // decoded text, or lowercase hex of the raw bytes when Broken
	Broken bool
	Style  ColorState
}

// Decoder is not safe for concurrent use. Separate decoders share no state.
type Decoder struct {
	state ColorState
	runs  []TextRun
	text  utf8State
	esc   ansiState
}

// NewDecoder returns a decoder starting from the given color state.
func NewDecoder(state ColorState) *Decoder {
	return &Decoder{state: state}
}

// Timestamp sets the timestamp for the bytes that follow.
func (d *Decoder) Timestamp(ts float64) {
	d.timestamp(ts)
}

// WriteByte feeds one byte. It never fails.
func (d *Decoder) WriteByte(b byte) error {
	d.parseANSI(b)
	return nil
}

// Write feeds p byte by byte. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, b := range p {
		d.parseANSI(b)
	}
	return len(p), nil
}

// Flush emits pending text. An unfinished escape sequence is rendered literally and an
// unfinished codepoint becomes a broken run.
func (d *Decoder) Flush() {
	if d.esc.step != stepScan {
		d.abort()
	}
	d.flushUTF8()
}

// Runs returns the runs emitted so far. The slice must not be modified.
func (d *Decoder) Runs() []TextRun {
	return d.runs
}

// State returns the current color state.
func (d *Decoder) State() ColorState {
	return d.state
}

// Decode decodes every chunk of log, regardless of source, as one stream.
func Decode(log outputlog.Log, state ColorState) ([]TextRun, ColorState) {
	d := NewDecoder(state)
	for _, chunk := range log {
		d.Timestamp(chunk.Timestamp)
		_, _ = d.Write(chunk.Payload)
	}
	d.Flush()
	return d.Runs(), d.State()
}

// DecodeSource decodes only the chunks captured from source.
func DecodeSource(log outputlog.Log, source outputlog.Source, state ColorState) ([]TextRun, ColorState) {
	return Decode(log.Source(source), state)
}

// Highlight reports, for every run, whether it lies in the past relative to ts,
// i.e. whether it began at or before ts.
func Highlight(runs []TextRun, ts float64) []bool {
	past := make([]bool, len(runs))
	for i, run := range runs {
		past[i] = run.Begin <= ts
	}
	return past
}

// Cursor returns the index of the first run beginning exactly at ts, or -1.
func Cursor(runs []TextRun, ts float64) int {
	for i, run := range runs {
		if run.Begin == ts {
			return i
		}
	}
	return -1
}

// String concatenates the text of all runs.
func String(runs []TextRun) string {
	n := 0
	for _, run := range runs {
		n += len(run.Text)
	}
	buf := make([]byte, 0, n)
	for _, run := range runs {
		buf = append(buf, run.Text...)
	}
	return string(buf)
}
