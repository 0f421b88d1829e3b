package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"chunklog/internal/render"
	"chunklog/pkg/outputkind"
	"chunklog/pkg/outputlog"
	"chunklog/pkg/textrun"
)

var (
	replaySource string
	replayColor  string
	replayAt     float64
)

var replayCmd = &cobra.Command{
	Use:   "replay LOG",
	Short: "Print a recorded log with its colors",
	Long: `Decode a recorded log and print it the way the terminal showed it.

With --at, output recorded after the given time (milliseconds since the start
of the capture) is dimmed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := loadLog(args[0])
		if err != nil {
			return err
		}

		runs, err := decodeRuns(log, replaySource)
		if err != nil {
			return err
		}
		if kind, reason := outputkind.Detect(log); kind == outputkind.Binary || kind == outputkind.Fullscreen {
			slog.Warn("Replay will not look like the terminal did", "kind", kind, "reason", reason)
		}

		mode, err := render.ParseColorMode(replayColor)
		if err != nil {
			return err
		}
		opts := render.ReplayOptions{Color: mode}
		if cmd.Flags().Changed("at") {
			at := replayAt
			opts.At = &at
		}
		return render.Replay(cmd.OutOrStdout(), runs, opts)
	},
}

// decodeRuns decodes all streams together, or only the named one.
func decodeRuns(log outputlog.Log, source string) ([]textrun.TextRun, error) {
	if source == "" {
		runs, _ := textrun.Decode(log, textrun.DefaultColorState())
		return runs, nil
	}
	s, err := outputlog.ParseSource(source)
	if err != nil {
		return nil, err
	}
	runs, _ := textrun.DecodeSource(log, s, textrun.DefaultColorState())
	return runs, nil
}

var catSource string

var catCmd = &cobra.Command{
	Use:   "cat LOG",
	Short: "Write the raw bytes of one stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := outputlog.ParseSource(catSource)
		if err != nil {
			return err
		}

		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		defer func() { _ = file.Close() }()

		reader := outputlog.NewReader(file)
		if _, err := io.Copy(cmd.OutOrStdout(), reader.StreamReader(s)); err != nil {
			return fmt.Errorf("failed to copy stream: %w", err)
		}
		return warnTruncated(args[0], reader.Err())
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks LOG",
	Short: "List the chunks of a log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		defer func() { _ = file.Close() }()

		out := cmd.OutOrStdout()
		reader := outputlog.NewReader(file)
		for {
			chunk, err := reader.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return warnTruncated(args[0], err)
			}
			fmt.Fprintf(out, "%-7s %12s %3d %s\n",
				chunk.Source,
				strconv.FormatFloat(chunk.Timestamp, 'f', 3, 64),
				len(chunk.Payload),
				strconv.Quote(string(chunk.Payload)))
		}
	},
}

func init() {
	replayCmd.Flags().StringVar(&replaySource, "source", "", "Only replay one stream: stdout, stderr, failed or extra")
	replayCmd.Flags().StringVar(&replayColor, "color", "auto", "Colors: auto, always or never")
	replayCmd.Flags().Float64Var(&replayAt, "at", 0, "Dim output recorded after this many milliseconds")

	catCmd.Flags().StringVar(&catSource, "source", "stdout", "Stream to write: stdout, stderr, failed or extra")
}
