package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chunklog/internal/livefeed"
	"chunklog/internal/render"
	"chunklog/internal/session"
	"chunklog/pkg/report"
)

type htmlOptions struct {
	output string
	title  string
	source string
}

var htmlOpts htmlOptions

var htmlCmd = &cobra.Command{
	Use:   "html LOG",
	Short: "Export a log as a standalone HTML page",
	Long: `Export a log as a standalone HTML page with its colors, the timestamps of
every text run and the statistics of its REPORT series.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out io.Writer = cmd.OutOrStdout()
		if htmlOpts.output != "" && htmlOpts.output != "-" {
			file, err := os.Create(htmlOpts.output)
			if err != nil {
				return fmt.Errorf("failed to create html file: %w", err)
			}
			defer func() { _ = file.Close() }()
			out = file
		}
		return writeHTML(out, args[0], &htmlOpts, cfg.Precision)
	},
}

func writeHTML(w io.Writer, path string, opts *htmlOptions, precision int) error {
	log, err := loadLog(path)
	if err != nil {
		return err
	}
	runs, err := decodeRuns(log, opts.source)
	if err != nil {
		return err
	}
	selections, err := selectSeries(report.Extract(log), nil)
	if err != nil {
		return err
	}

	notes, err := sessionNotes(path)
	if err != nil {
		return err
	}

	title := opts.title
	if title == "" {
		title = filepath.Base(path)
	}
	return render.HTML(w, render.HTMLOptions{
		Title:     title,
		Runs:      runs,
		Stats:     summarize(selections),
		Precision: precision,
		Notes:     notes,
	})
}

// sessionNotes describes the capture of the log at path in markdown, if a session file
// exists for it.
func sessionNotes(path string) (string, error) {
	sess, err := session.LoadForLog(path)
	if err != nil || sess == nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- command: `%s`\n", strings.ReplaceAll(sess.CommandLine(), "`", "'"))
	fmt.Fprintf(&b, "- started: %s\n", sess.StartTime.Format(time.RFC3339))
	if sess.Completed {
		fmt.Fprintf(&b, "- duration: %s\n", sess.Duration().Round(time.Millisecond))
		fmt.Fprintf(&b, "- exit code: %d\n", sess.ExitCode)
	}
	if sess.Signal != "" {
		fmt.Fprintf(&b, "- signal: %s\n", sess.Signal)
	}
	if sess.Error != "" {
		fmt.Fprintf(&b, "- error: %s\n", sess.Error)
	}
	if sess.OutputKind != "" {
		fmt.Fprintf(&b, "- output: %s\n", sess.OutputKind)
	}
	return b.String(), nil
}

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve LOG",
	Short: "Serve a recorded log over HTTP",
	Long: `Serve a recorded log: the HTML export on /, the chunks as a websocket feed
on /feed, in the same format "observe --listen" uses while recording, and the
raw log on /log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listen := serveListen
		if !cmd.Flags().Changed("listen") && cfg.Listen != "" {
			listen = cfg.Listen
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serveLog(ctx, args[0], listen, cfg.Precision)
	},
}

func init() {
	htmlCmd.Flags().StringVarP(&htmlOpts.output, "output", "o", "", "HTML file to write (default: stdout)")
	htmlCmd.Flags().StringVar(&htmlOpts.title, "title", "", "Page title (default: the log file name)")
	htmlCmd.Flags().StringVar(&htmlOpts.source, "source", "", "Only export one stream: stdout, stderr, failed or extra")

	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:8765", "Address to listen on")
}

func serveLog(ctx context.Context, path, addr string, precision int) error {
	log, err := loadLog(path)
	if err != nil {
		return err
	}

	var page bytes.Buffer
	if err := writeHTML(&page, path, &htmlOptions{}, precision); err != nil {
		return err
	}

	hub := livefeed.NewHub(slog.Default())
	defer hub.Close()
	for _, chunk := range log {
		_ = hub.WriteChunk(chunk)
	}

	mux := http.NewServeMux()
	mux.Handle("/feed", hub)
	mux.HandleFunc("/log", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(log.Encode())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page.Bytes())
	})

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving log", "url", "http://"+listener.Addr().String()+"/", "chunks", len(log))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
