// Package outputlog defines a compact binary protocol to multiplex several output streams
// of one process into a single timestamped log.
//
// # Overview
//
// Goals:
//
//  1. Preserve the exact output including binary data
//  2. Differentiate between sources (stdout, stderr, failure diagnostics, extra data)
//  3. Attach a capture timestamp to every delivered buffer
//  4. Stay cheap to append to while a process is running
//  5. Detect unfinished writes
//
// # Frame Format
//
// A log is a plain concatenation of frames. Every frame is
//
//	[source: 1 byte][timestamp: 8 bytes][length: 1 byte][payload: length bytes]
//
// All multi-byte fields are little-endian.
//
// # Fields
//
//   - source: 0 = failed, 1 = stdout, 2 = stderr, 3 = extra
//   - timestamp: IEEE-754 float64, milliseconds on the monotonic capture clock
//   - length: payload length, 0..255
//   - payload: raw output bytes
//
// A buffer longer than 255 bytes is written as consecutive frames sharing the same
// source and timestamp.
//
// # Ordering
//
// Frames appear in the order their buffers were delivered. Timestamps never decrease
// within one source, but stdout and stderr frames may interleave with timestamps out
// of order relative to each other.
//
// # Truncation
//
// If the log ends in the middle of a frame, readers return all complete frames together
// with a *TruncatedError. The incomplete tail is discarded.
package outputlog
