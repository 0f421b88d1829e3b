// Package outputkind guesses what kind of program produced a recorded stdout stream, so
// that a plain replay of a fullscreen or binary stream can be flagged.
package outputkind

import (
	"bytes"
	"regexp"
	"strings"

	"chunklog/pkg/outputlog"
)

// Kind is the detected kind of output.
type Kind string

const (
	Unknown    Kind = "unknown"
	Binary     Kind = "binary"
	Text       Kind = "text"
	Fullscreen Kind = "fullscreen"
	Styled     Kind = "styled" // colors or cursor movement without taking over the screen
	Markdown   Kind = "markdown"
)

const (
	maxInspect       = 8192 // bytes looked at before deciding
	maxLines         = 50
	minMarkdownScore = 3
	binaryRatio      = 0.3
)

var (
	altScreenPattern = regexp.MustCompile(`\x1b\[\?(1049|1047|47)h`)
	clearPattern     = regexp.MustCompile(`\x1b\[[23]J`)
	cursorPattern    = regexp.MustCompile(`\x1b\[(\d*;?\d*H|\d*[ABCD])`)
	sgrPattern       = regexp.MustCompile(`\x1b\[[0-9;]+m`)

	headerPattern = regexp.MustCompile(`^#{1,6}( |$)`)
	listPattern   = regexp.MustCompile(`^([-*+] |\d+\. )`)
	linkPattern   = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
)

// Detector looks at the start of a stream and settles on a Kind. It is not safe for
// concurrent use; as a Sink it is driven by the single goroutine of an outputlog.Writer.
type Detector struct {
	kind    Kind
	reason  string
	done    bool
	seen    int
	lines   int
	pending []byte // incomplete last line

	altScreen bool
	clear     bool
	cursor    bool
	color     bool
	markdown  int
}

// NewDetector returns a Detector that has seen nothing.
func NewDetector() *Detector {
	return &Detector{kind: Unknown}
}

// Feed analyzes the next piece of the stream. It returns true once the kind is decided;
// later calls are ignored.
func (d *Detector) Feed(p []byte) bool {
	if d.done || len(p) == 0 {
		return d.done
	}
	d.seen += len(p)

	if isBinary(p) {
		return d.decide(Binary, "null bytes or high proportion of non-printable characters detected")
	}

	d.pending = append(d.pending, p...)
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		line := string(d.pending[:i+1])
		d.pending = d.pending[i+1:]
		if d.analyzeLine(line) {
			return true
		}
	}

	// fullscreen programs rarely print newlines
	if len(d.pending) >= maxInspect {
		line := string(d.pending)
		d.pending = nil
		if d.analyzeLine(line) {
			return true
		}
	}

	if d.seen >= maxInspect {
		return d.conclude()
	}
	return false
}

// WriteChunk feeds stdout chunks and ignores the other streams.
func (d *Detector) WriteChunk(c outputlog.Chunk) error {
	if c.Source == outputlog.SourceStdout {
		d.Feed(c.Payload)
	}
	return nil
}

// Result returns the kind and why it was chosen. A stream that ended before the
// detector could decide is judged on what was seen.
func (d *Detector) Result() (Kind, string) {
	if !d.done {
		if d.seen == 0 {
			return Unknown, "no output"
		}
		if len(d.pending) > 0 {
			line := string(d.pending)
			d.pending = nil
			d.analyzeLine(line)
		}
		if !d.done {
			d.conclude()
		}
	}
	return d.kind, d.reason
}

// Detect runs a Detector over the stdout chunks of log.
func Detect(log outputlog.Log) (Kind, string) {
	d := NewDetector()
	for _, c := range log {
		if c.Source != outputlog.SourceStdout {
			continue
		}
		if d.Feed(c.Payload) {
			break
		}
	}
	return d.Result()
}

func (d *Detector) analyzeLine(line string) bool {
	d.lines++
	d.scanEscapes(line)
	d.scanMarkdown(line)

	if d.altScreen {
		return d.decide(Fullscreen, "alternate screen buffer escape sequence detected")
	}
	if d.clear {
		return d.decide(Fullscreen, "clear screen escape sequence detected")
	}
	if d.lines >= maxLines {
		return d.conclude()
	}
	return false
}

// conclude decides between the kinds that need more than one line of evidence.
func (d *Detector) conclude() bool {
	switch {
	case d.markdown >= minMarkdownScore:
		return d.decide(Markdown, "significant markdown formatting detected")
	case d.color || d.cursor:
		return d.decide(Styled, "ANSI color codes or cursor movement without fullscreen sequences")
	default:
		return d.decide(Text, "no special terminal control sequences detected")
	}
}

func (d *Detector) decide(kind Kind, reason string) bool {
	d.kind = kind
	d.reason = reason
	d.done = true
	d.pending = nil
	return true
}

func (d *Detector) scanEscapes(line string) {
	if !strings.Contains(line, "\x1b[") {
		return
	}
	if altScreenPattern.MatchString(line) {
		d.altScreen = true
		return
	}
	if clearPattern.MatchString(line) {
		d.clear = true
		return
	}
	if cursorPattern.MatchString(line) {
		d.cursor = true
	}
	if sgrPattern.MatchString(line) {
		d.color = true
	}
}

func (d *Detector) scanMarkdown(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	if headerPattern.MatchString(trimmed) {
		d.markdown++
	}
	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
		d.markdown++
	}
	if listPattern.MatchString(trimmed) {
		d.markdown++
	}
	if linkPattern.MatchString(line) {
		d.markdown++
	}
	if strings.Contains(line, "**") || strings.Contains(line, "__") {
		d.markdown++
	}
	if strings.HasPrefix(trimmed, "> ") {
		d.markdown++
	}
}

// isBinary reports a null byte, or C0/C1 control characters other than common
// whitespace and ESC making up more than binaryRatio of p.
func isBinary(p []byte) bool {
	s := string(p)
	control, total := 0, 0
	for _, r := range s {
		total++
		switch {
		case r == 0:
			return true
		case r < 32 && r != '\t' && r != '\n' && r != '\r' && r != 0x1b:
			control++
		case r > 126 && r < 160:
			control++
		}
	}
	return float64(control) > float64(total)*binaryRatio
}
