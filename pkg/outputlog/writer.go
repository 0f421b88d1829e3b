package outputlog

import (
	"io"
	"sync"
	"time"
)

// Clock returns the current capture timestamp in milliseconds. A Clock is called from
// several goroutines and must be safe for concurrent use.
type Clock func() float64

// MonotonicClock returns a Clock counting milliseconds from the moment it was created,
// using the monotonic clock reading.
func MonotonicClock() Clock {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start)) / float64(time.Millisecond)
	}
}

// Sink receives framed chunks, in order, from a single goroutine.
type Sink interface {
	WriteChunk(Chunk) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Chunk) error

func (f SinkFunc) WriteChunk(c Chunk) error { return f(c) }

type frameSink struct {
	writer io.Writer
	buf    []byte
}

// NewFrameSink returns a Sink which encodes every chunk and writes it to w immediately.
func NewFrameSink(w io.Writer) Sink {
	return &frameSink{writer: w}
}

func (s *frameSink) WriteChunk(c Chunk) error {
	buf, err := AppendChunk(s.buf[:0], c)
	if err != nil {
		return err
	}
	s.buf = buf
	_, err = s.writer.Write(buf)
	return err
}

type multiSink []Sink

// MultiSink duplicates every chunk to all sinks. It stops at the first failing sink.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) WriteChunk(c Chunk) error {
	for _, s := range m {
		if err := s.WriteChunk(c); err != nil {
			return err
		}
	}
	return nil
}

// Writer timestamps buffers on delivery and frames them into a Sink. A single goroutine
// owns the sink, so chunks are never built concurrently.
type Writer struct {
	chunks    chan Chunk
	done      chan struct{}
	clock     Clock
	err       error
	closeOnce sync.Once
}

// StreamWriter returns an io.Writer for one source. Every Write is stamped with the
// current clock reading. Timestamps get added automatically.
func (w *Writer) StreamWriter(source Source) io.Writer {
	return &streamWriter{
		source: source,
		writer: w,
	}
}

// Channel returns a channel for writing pre-stamped Chunks. Payloads longer than
// MaxPayload get split.
// Do not close the returned channel. Call Close() on the writer instead.
func (w *Writer) Channel() chan<- Chunk {
	return w.chunks
}

// Now returns the current reading of the writer's clock.
func (w *Writer) Now() float64 {
	return w.clock()
}

// Close closes the writer, waits for all pending chunks to reach the sink and returns
// the first sink error.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.chunks)
	})
	<-w.done
	return w.err
}

type streamWriter struct {
	source Source
	writer *Writer
}

func (sw *streamWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	sw.writer.chunks <- Chunk{
		Source:    sw.source,
		Timestamp: sw.writer.clock(),
		Payload:   append([]byte(nil), p...), // Make a copy of the data
	}

	return len(p), nil
}

// NewWriter creates a Writer delivering chunks to sink. A nil clock means
// MonotonicClock(). The internal goroutine will run until Close() is called.
func NewWriter(sink Sink, clock Clock) *Writer {
	if clock == nil {
		clock = MonotonicClock()
	}
	w := &Writer{
		chunks: make(chan Chunk, 100),
		done:   make(chan struct{}),
		clock:  clock,
	}

	go func() {
		defer close(w.done)
		for chunk := range w.chunks {
			if w.err != nil {
				// keep draining so producers never block
				continue
			}
			parts := []Chunk{chunk}
			if len(chunk.Payload) > MaxPayload {
				parts = Split(chunk.Source, chunk.Timestamp, chunk.Payload)
			}
			for _, part := range parts {
				if err := sink.WriteChunk(part); err != nil {
					w.err = err
					break
				}
			}
		}
	}()

	return w
}
