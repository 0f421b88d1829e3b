package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"chunklog/internal/capture"
	"chunklog/internal/config"
	"chunklog/internal/logging"
	"chunklog/pkg/outputlog"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before any command runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chunklog",
	Short: "chunklog - record and analyze timestamped command output",
	Long: `chunklog records the stdout and stderr of a command as timestamped chunks in a
compact binary log, replays the log with its colors, and extracts timing
reports ("REPORT <name> <value><unit>") and their statistics.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(htmlCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads the configuration, applies the global flags and initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if err := logging.Init(cmd.ErrOrStderr(), loaded.LogFormat, logging.ParseLevel(loaded.LogLevel)); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// loadLog reads a chunk log. A truncated tail is reported as a warning and the complete
// chunks are used.
func loadLog(path string) (outputlog.Log, error) {
	log, err := outputlog.ReadFile(path)
	return log, warnTruncated(path, err)
}

// warnTruncated logs a truncated tail and swallows it. Other errors are returned as is.
func warnTruncated(path string, err error) error {
	var truncated *outputlog.TruncatedError
	if errors.As(err, &truncated) {
		slog.Warn("Log ends with an incomplete chunk, ignoring it",
			"path", path, "offset", truncated.Offset, "bytes", truncated.Remaining)
		return nil
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *capture.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
