package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chunklog/internal/capture"
	"chunklog/internal/livefeed"
	"chunklog/internal/session"
	"chunklog/pkg/outputkind"
	"chunklog/pkg/outputlog"
)

type observeOptions struct {
	output         string
	dir            string
	timeout        time.Duration
	pty            bool
	sampleInterval time.Duration
	listen         string
	quiet          bool
	noSession      bool
}

var observeOpts observeOptions

var observeCmd = &cobra.Command{
	Use:   "observe -o LOG [flags] -- cmd [args...]",
	Short: "Run a command and record its output",
	Long: `Run a command and record its stdout and stderr as timestamped chunks.

The command reads chunklog's stdin. Its output is shown while it runs unless
--quiet is given. When the command fails or runs longer than --timeout, a
"Failed: <reason>" chunk is recorded and chunklog exits with the command's
exit code. A session file (LOG.session.yaml) describing the run is written
next to the log.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("pty") {
			observeOpts.pty = cfg.PTY
		}
		if !cmd.Flags().Changed("sample-interval") {
			observeOpts.sampleInterval = cfg.SampleInterval
		}
		if !cmd.Flags().Changed("listen") {
			observeOpts.listen = cfg.Listen
		}
		return runObserve(cmd, args, &observeOpts)
	},
}

func init() {
	observeCmd.Flags().SetInterspersed(false)

	observeCmd.Flags().StringVarP(&observeOpts.output, "output", "o", "", "Log file to write")
	observeCmd.Flags().StringVar(&observeOpts.dir, "dir", "", "Working directory of the command (default: the current one)")
	observeCmd.Flags().DurationVar(&observeOpts.timeout, "timeout", 0, "Kill the command after this long (0 disables)")
	observeCmd.Flags().BoolVar(&observeOpts.pty, "pty", false, "Run the command on a pseudo-terminal")
	observeCmd.Flags().DurationVar(&observeOpts.sampleInterval, "sample-interval", 0, "Record cpu and memory samples at this interval (0 disables)")
	observeCmd.Flags().StringVar(&observeOpts.listen, "listen", "", "Serve a live websocket feed of the chunks on this address, e.g. 127.0.0.1:8765")
	observeCmd.Flags().BoolVarP(&observeOpts.quiet, "quiet", "q", false, "Do not show the output while recording")
	observeCmd.Flags().BoolVar(&observeOpts.noSession, "no-session", false, "Do not write the session file")
	_ = observeCmd.MarkFlagRequired("output")
}

func runObserve(cmd *cobra.Command, argv []string, opts *observeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer func() { _ = file.Close() }()
	buffered := bufio.NewWriter(file)

	detector := outputkind.NewDetector()
	sinks := []outputlog.Sink{outputlog.NewFrameSink(buffered), detector}
	if !opts.quiet {
		sinks = append(sinks, teeSink(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	}

	var hub *livefeed.Hub
	if opts.listen != "" {
		hub = livefeed.NewHub(slog.Default())
		shutdown, err := serveFeed(opts.listen, hub)
		if err != nil {
			return err
		}
		defer shutdown()
		sinks = append(sinks, hub)
	}

	sess := session.New(argv, opts.output)
	res, runErr := capture.Run(ctx, argv, outputlog.MultiSink(sinks...), capture.Options{
		Dir:            opts.dir,
		Stdin:          cmd.InOrStdin(),
		PTY:            opts.pty,
		SampleInterval: opts.sampleInterval,
		Timeout:        opts.timeout,
	})

	if hub != nil {
		hub.Close()
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}

	kind, reason := detector.Result()
	slog.Debug("Output kind detected", "kind", kind, "reason", reason)

	if !opts.noSession {
		sess.Complete(res, runErr)
		sess.OutputKind = string(kind)
		if err := sess.Save(session.SidecarPath(opts.output)); err != nil {
			return err
		}
	}

	return runErr
}

// teeSink shows stdout chunks on out and every other stream on errOut.
func teeSink(out, errOut io.Writer) outputlog.Sink {
	return outputlog.SinkFunc(func(c outputlog.Chunk) error {
		w := errOut
		if c.Source == outputlog.SourceStdout {
			w = out
		}
		// a broken terminal must not stop the recording
		_, _ = w.Write(c.Payload)
		return nil
	})
}

// serveFeed starts an HTTP server with the live feed on /feed. The returned function
// stops it.
func serveFeed(addr string, hub *livefeed.Hub) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/feed", hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Live feed server failed", "error", err)
		}
	}()
	slog.Info("Serving live feed", "url", "ws://"+listener.Addr().String()+"/feed")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
