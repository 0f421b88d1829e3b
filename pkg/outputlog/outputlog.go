// Package outputlog defines a binary protocol to multiplex several streams into one stream. See
// doc.go for docs.
package outputlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Source identifies the stream a chunk was captured from.
type Source uint8

const (
	SourceFailed Source = iota
	SourceStdout
	SourceStderr
	SourceExtra
)

const (
	// HeaderSize is the number of bytes in front of every payload.
	HeaderSize = 10
	// MaxPayload is the largest payload a single frame can carry.
	MaxPayload = math.MaxUint8
)

var ErrPayloadTooLarge = errors.New("payload exceeds 255 bytes")

func (s Source) String() string {
	switch s {
	case SourceFailed:
		return "failed"
	case SourceStdout:
		return "stdout"
	case SourceStderr:
		return "stderr"
	case SourceExtra:
		return "extra"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// ParseSource converts a source name as printed by String back to a Source.
func ParseSource(name string) (Source, error) {
	for _, s := range []Source{SourceFailed, SourceStdout, SourceStderr, SourceExtra} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", name)
}

// Chunk is one framed unit of captured output.
type Chunk struct {
	Source    Source
	Timestamp float64 // milliseconds on the capture clock
	Payload   []byte
}

// Size returns the encoded size of the chunk.
func (c Chunk) Size() int {
	return HeaderSize + len(c.Payload)
}

// Log is an ordered sequence of chunks, as captured or as loaded from disk.
type Log []Chunk

// WriteChunk appends c. It makes *Log usable as an in-memory Sink.
func (l *Log) WriteChunk(c Chunk) error {
	*l = append(*l, c)
	return nil
}

// Bytes returns the total payload size of the log.
func (l Log) Bytes() int {
	n := 0
	for _, c := range l {
		n += len(c.Payload)
	}
	return n
}

// Source returns the chunks captured from s, in order.
func (l Log) Source(s Source) Log {
	var out Log
	for _, c := range l {
		if c.Source == s {
			out = append(out, c)
		}
	}
	return out
}

// Encode returns the binary form of the whole log. Oversized payloads are split.
func (l Log) Encode() []byte {
	buf := make([]byte, 0, len(l)*HeaderSize+l.Bytes())
	for _, c := range l {
		buf = append(buf, FormatChunk(c)...)
	}
	return buf
}

// AppendChunk appends the frame for c to dst.
func AppendChunk(dst []byte, c Chunk) ([]byte, error) {
	if len(c.Payload) > MaxPayload {
		return dst, fmt.Errorf("failed to encode %s chunk of %d bytes: %w", c.Source, len(c.Payload), ErrPayloadTooLarge)
	}
	dst = append(dst, byte(c.Source))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(c.Timestamp))
	dst = append(dst, byte(len(c.Payload)))
	return append(dst, c.Payload...), nil
}

// FormatChunk returns the encoded frames for c. Payloads longer than MaxPayload
// become several frames sharing source and timestamp.
func FormatChunk(c Chunk) []byte {
	parts := []Chunk{c}
	if len(c.Payload) > MaxPayload {
		parts = Split(c.Source, c.Timestamp, c.Payload)
	}
	var buf []byte
	for _, part := range parts {
		// parts never exceed MaxPayload
		buf, _ = AppendChunk(buf, part)
	}
	return buf
}

// Split cuts data into chunks of at most MaxPayload bytes that share source and
// timestamp. The payloads alias data. Empty data yields no chunks.
func Split(source Source, timestamp float64, data []byte) []Chunk {
	chunks := make([]Chunk, 0, (len(data)+MaxPayload-1)/MaxPayload)
	for begin := 0; begin < len(data); begin += MaxPayload {
		end := min(begin+MaxPayload, len(data))
		chunks = append(chunks, Chunk{
			Source:    source,
			Timestamp: timestamp,
			Payload:   data[begin:end:end],
		})
	}
	return chunks
}
