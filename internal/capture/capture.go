// Package capture runs a command and records its output streams as timestamped chunks.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"chunklog/pkg/outputlog"
)

// readBufferSize is the size of a single pipe read. Whatever one read returns is
// delivered as one timestamped buffer, so output without a trailing newline (prompts,
// progress bars) is recorded as soon as it is written.
const readBufferSize = 8192

// Options configure a capture.
type Options struct {
	Dir   string    // working directory; empty means the current one
	Env   []string  // extra environment variables appended to the current environment
	Stdin io.Reader // nil means no input

	// PTY runs the command on a pseudo-terminal so it sees a terminal and keeps its
	// colors. Everything it writes is then recorded as stdout.
	PTY bool

	// SampleInterval enables periodic resource samples on the extra stream.
	SampleInterval time.Duration

	// Timeout kills the command once it has run this long. Zero means no limit.
	Timeout time.Duration

	Clock  outputlog.Clock // nil means outputlog.MonotonicClock
	Logger *slog.Logger    // nil means slog.Default
}

// Result describes a finished capture.
type Result struct {
	Command  string
	PID      int
	Start    time.Time
	End      time.Time
	ExitCode int
	Signal   string
	Chunks   int // chunks delivered to the sink
	Bytes    int // payload bytes delivered to the sink
}

// Run executes argv[0] with the remaining arguments (no shell) and writes its output to
// sink. It returns once the command has exited and all output has been delivered.
//
// When the command cannot be started, exits non-zero or is killed, a single
// "Failed: <error>" chunk is written on the failed stream and the error, which matches
// ErrCaptureFailed, is returned together with the result. Canceling ctx or reaching
// opts.Timeout kills the command and is reported as a *SignalError.
func Run(ctx context.Context, argv []string, sink outputlog.Sink, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res := &Result{Command: strings.Join(argv, " ")}
	counted := outputlog.SinkFunc(func(c outputlog.Chunk) error {
		res.Chunks++
		res.Bytes += len(c.Payload)
		return sink.WriteChunk(c)
	})
	w := outputlog.NewWriter(counted, opts.Clock)

	res.Start = time.Now()
	runErr := run(ctx, argv, w, opts, res, logger)
	res.End = time.Now()

	if runErr != nil {
		_, _ = w.StreamWriter(outputlog.SourceFailed).Write([]byte("Failed: " + runErr.Error() + "\n"))
	}

	sinkErr := w.Close()
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("Capture timed out", "command", res.Command, "timeout", opts.Timeout)
		}
		logger.Warn("Capture failed", "command", res.Command, "error", runErr)
		return res, runErr
	}
	if sinkErr != nil {
		return res, fmt.Errorf("failed to write chunk: %w", sinkErr)
	}
	logger.Info("Capture finished", "command", res.Command, "pid", res.PID, "chunks", res.Chunks, "bytes", res.Bytes)
	return res, nil
}

// Observe runs the command and collects its output in memory. The log gathered so far
// is returned even when the capture fails.
func Observe(ctx context.Context, argv []string, opts Options) (outputlog.Log, *Result, error) {
	var log outputlog.Log
	res, err := Run(ctx, argv, &log, opts)
	return log, res, err
}

func run(ctx context.Context, argv []string, w *outputlog.Writer, opts Options, res *Result, logger *slog.Logger) error {
	if len(argv) == 0 {
		return &SpawnError{Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	prepare(cmd, opts.PTY)

	var readers sync.WaitGroup
	if opts.PTY {
		ptmx, err := startPTY(cmd)
		if err != nil {
			return &SpawnError{Command: res.Command, Err: err}
		}
		defer func() { _ = ptmx.Close() }()

		if opts.Stdin != nil {
			go func() { _, _ = io.Copy(ptmx, opts.Stdin) }()
		}
		readers.Add(1)
		go readStream(ptmx, w.StreamWriter(outputlog.SourceStdout), &readers)
	} else {
		cmd.Stdin = opts.Stdin

		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return &SpawnError{Command: res.Command, Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
		}
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return &SpawnError{Command: res.Command, Err: fmt.Errorf("failed to create stderr pipe: %w", err)}
		}

		if err := cmd.Start(); err != nil {
			return &SpawnError{Command: res.Command, Err: err}
		}

		readers.Add(2)
		go readStream(stdoutPipe, w.StreamWriter(outputlog.SourceStdout), &readers)
		go readStream(stderrPipe, w.StreamWriter(outputlog.SourceStderr), &readers)
	}

	res.PID = cmd.Process.Pid
	logger.Info("Capture started", "command", res.Command, "pid", res.PID, "pty", opts.PTY)

	stopSampler := func() {}
	if opts.SampleInterval > 0 {
		stopSampler = startSampler(res.PID, opts.SampleInterval, w.StreamWriter(outputlog.SourceExtra), logger)
	}

	// The pipes must be drained before Wait closes them.
	readers.Wait()
	err := cmd.Wait()
	stopSampler()

	return classify(err, res)
}

// readStream forwards every read from r to w until r is exhausted.
func readStream(r io.Reader, w io.Writer, done *sync.WaitGroup) {
	defer done.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
