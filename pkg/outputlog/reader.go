package outputlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrShortHeader  = errors.New("fewer than 10 bytes left for a frame header")
	ErrShortPayload = errors.New("fewer bytes left than the frame length announces")
	ErrTruncated    = errors.New("truncated log")
)

// TruncatedError reports bytes at the end of a log that do not form a complete frame.
type TruncatedError struct {
	Offset    int // offset of the incomplete frame
	Remaining int // bytes discarded
	Err       error
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("incomplete last chunk (%d bytes at offset %d): %v", e.Remaining, e.Offset, e.Err)
}

func (e *TruncatedError) Unwrap() error { return e.Err }

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }

// DecodeChunk decodes the frame at the start of buf and returns it along with the
// number of bytes consumed. The payload aliases buf.
func DecodeChunk(buf []byte) (Chunk, int, error) {
	if len(buf) < HeaderSize {
		return Chunk{}, 0, ErrShortHeader
	}
	length := int(buf[HeaderSize-1])
	if len(buf)-HeaderSize < length {
		return Chunk{}, 0, ErrShortPayload
	}
	end := HeaderSize + length
	return Chunk{
		Source:    Source(buf[0]),
		Timestamp: math.Float64frombits(binary.LittleEndian.Uint64(buf[1:9])),
		Payload:   buf[HeaderSize:end:end],
	}, end, nil
}

// Decode decodes a whole log. If buf ends with an incomplete frame, the complete chunks
// are returned together with a *TruncatedError.
func Decode(buf []byte) (Log, error) {
	var log Log
	offset := 0
	for offset < len(buf) {
		chunk, n, err := DecodeChunk(buf[offset:])
		if err != nil {
			return log, &TruncatedError{Offset: offset, Remaining: len(buf) - offset, Err: err}
		}
		log = append(log, chunk)
		offset += n
	}
	return log, nil
}

// ReadFile reads and decodes the log at path. A truncated log is returned together with
// its *TruncatedError; any other error yields a nil log.
func ReadFile(path string) (Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return Decode(data)
}

// Reader reads frames from an io.Reader.
type Reader struct {
	reader *bufio.Reader
	offset int
	err    error
}

// NewReader returns a Reader decoding frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// Next returns the next chunk. It returns io.EOF at a clean end of input and a
// *TruncatedError if the input ends inside a frame.
func (r *Reader) Next() (Chunk, error) {
	var header [HeaderSize]byte
	n, err := io.ReadFull(r.reader, header[:])
	if err == io.EOF {
		return Chunk{}, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return Chunk{}, &TruncatedError{Offset: r.offset, Remaining: n, Err: ErrShortHeader}
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("reading header: %w", err)
	}

	payload := make([]byte, header[HeaderSize-1])
	m, err := io.ReadFull(r.reader, payload)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return Chunk{}, &TruncatedError{Offset: r.offset, Remaining: HeaderSize + m, Err: ErrShortPayload}
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("reading content (%d bytes): %w", len(payload), err)
	}

	r.offset += HeaderSize + len(payload)
	return Chunk{
		Source:    Source(header[0]),
		Timestamp: math.Float64frombits(binary.LittleEndian.Uint64(header[1:9])),
		Payload:   payload,
	}, nil
}

// ReadAll reads chunks until the end of input. Like Decode it returns the complete
// chunks together with a *TruncatedError for an incomplete tail.
func (r *Reader) ReadAll() (Log, error) {
	var log Log
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			return log, nil
		}
		if err != nil {
			return log, err
		}
		log = append(log, chunk)
	}
}

// Channel returns a channel which emits chunks until the input ends or fails.
// The failure, if any, is available from Err once the channel is closed.
func (r *Reader) Channel() <-chan Chunk {
	channel := make(chan Chunk)
	go r.readToChannel(channel)
	return channel
}

func (r *Reader) readToChannel(channel chan<- Chunk) {
	defer close(channel)
	for {
		chunk, err := r.Next()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			return
		}
		channel <- chunk
	}
}

// Err returns the error that ended the last Channel, All or StreamReader pass.
func (r *Reader) Err() error {
	return r.err
}

// All returns a map with source as key and the concatenated payloads as value.
// Timestamps get ignored.
func (r *Reader) All() map[Source][]byte {
	result := make(map[Source][]byte)
	for chunk := range r.Channel() {
		result[chunk.Source] = append(result[chunk.Source], chunk.Payload...)
	}
	return result
}

// StreamReader returns an io.Reader for reading one source. Example: you want to read
// only stdout. Other sources and the timestamps get ignored.
func (r *Reader) StreamReader(source Source) io.Reader {
	return &ChannelReader{
		source:  source,
		channel: r.Channel(),
	}
}

// ChannelReader adapts a channel of chunks to an io.Reader over one source.
type ChannelReader struct {
	source  Source
	channel <-chan Chunk
	buffer  []byte // Buffer for partial chunk data
}

func (cr *ChannelReader) Read(p []byte) (n int, err error) {
	// First, copy any buffered data from previous reads
	if len(cr.buffer) > 0 {
		n = copy(p, cr.buffer)
		cr.buffer = cr.buffer[n:]
		if n == len(p) {
			return n, nil
		}
	}

	for chunk := range cr.channel {
		if chunk.Source != cr.source || len(chunk.Payload) == 0 {
			continue
		}

		copied := copy(p[n:], chunk.Payload)
		n += copied

		// If there's leftover data, buffer it for next read
		if copied < len(chunk.Payload) {
			cr.buffer = append(cr.buffer, chunk.Payload[copied:]...)
		}
		return n, nil
	}

	if n > 0 {
		return n, nil
	}
	return 0, io.EOF
}
