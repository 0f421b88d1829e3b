package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"chunklog/internal/render"
	"chunklog/pkg/report"
	"chunklog/pkg/stats"
)

// selection is a group of points summarized together: one series, or several merged
// with --series.
type selection struct {
	name   string
	unit   report.Unit
	points []report.Point
}

// selectSeries returns one selection per series, or a single merged selection of the
// named series.
func selectSeries(set *report.Set, names []string) ([]selection, error) {
	if len(names) == 0 {
		var all []selection
		for _, name := range set.Names() {
			series, _ := set.Get(name)
			all = append(all, selection{name: name, unit: series.Unit, points: series.Points})
		}
		return all, nil
	}

	merged := selection{name: strings.Join(names, "+")}
	for _, name := range names {
		series, ok := set.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown series %q", name)
		}
		if merged.unit == "" {
			merged.unit = series.Unit
		}
	}
	merged.points = set.Points(names...)
	return []selection{merged}, nil
}

func filterSelections(selections []selection, from, to float64) {
	for i := range selections {
		selections[i].points = stats.Filter(selections[i].points, from, to)
	}
}

// summarize computes the stats of every selection that has points left.
func summarize(selections []selection) []render.SeriesStats {
	var rows []render.SeriesStats
	for _, sel := range selections {
		summary, err := stats.Compute(sel.points)
		if errors.Is(err, stats.ErrEmpty) {
			slog.Debug("No data points in range", "series", sel.name)
			continue
		}
		rows = append(rows, render.SeriesStats{Name: sel.name, Unit: sel.unit, Summary: summary})
	}
	return rows
}

type statsOptions struct {
	series    []string
	from      float64
	to        float64
	histogram bool
	bins      int
	precision int
	format    string
	color     string
}

var statsOpts statsOptions

var statsCmd = &cobra.Command{
	Use:   "stats LOG",
	Short: "Summarize the REPORT lines of a log",
	Long: `Extract "REPORT <name> <value><unit>" lines from a log and print count, min,
median, mean, max and variance per series.

Repeat --series to merge several series into one summary. --from and --to
restrict the points to a capture time range in milliseconds.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := statsOpts
		if !cmd.Flags().Changed("precision") {
			opts.precision = cfg.Precision
		}
		if !cmd.Flags().Changed("bins") {
			opts.bins = cfg.Bins
		}
		if !cmd.Flags().Changed("from") {
			opts.from = math.Inf(-1)
		}
		if !cmd.Flags().Changed("to") {
			opts.to = math.Inf(1)
		}
		return runStats(cmd, args[0], &opts)
	},
}

func init() {
	statsCmd.Flags().StringArrayVar(&statsOpts.series, "series", nil, "Series to include, repeatable; several are merged (default: each series on its own)")
	statsCmd.Flags().Float64Var(&statsOpts.from, "from", 0, "Only points captured at or after this many milliseconds")
	statsCmd.Flags().Float64Var(&statsOpts.to, "to", 0, "Only points captured at or before this many milliseconds")
	statsCmd.Flags().BoolVar(&statsOpts.histogram, "histogram", false, "Also print a histogram per series")
	statsCmd.Flags().IntVar(&statsOpts.bins, "bins", stats.DefaultBins, "Number of histogram bins")
	statsCmd.Flags().IntVar(&statsOpts.precision, "precision", stats.DefaultPrecision, "Decimals shown")
	statsCmd.Flags().StringVar(&statsOpts.format, "format", "table", "Output format: table or markdown")
	statsCmd.Flags().StringVar(&statsOpts.color, "color", "auto", "Colors: auto, always or never")
}

func runStats(cmd *cobra.Command, path string, opts *statsOptions) error {
	if opts.precision < 0 || opts.bins < 0 {
		return errors.New("precision and bins must not be negative")
	}
	mode, err := render.ParseColorMode(opts.color)
	if err != nil {
		return err
	}

	log, err := loadLog(path)
	if err != nil {
		return err
	}
	set := report.Extract(log)
	if set.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no reports found")
		return nil
	}

	selections, err := selectSeries(set, opts.series)
	if err != nil {
		return err
	}
	filterSelections(selections, opts.from, opts.to)

	rows := summarize(selections)
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no reports in range")
		return nil
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "table":
		if err := render.StatsTable(out, rows, opts.precision, mode); err != nil {
			return err
		}
	case "markdown":
		fmt.Fprint(out, render.StatsMarkdown(rows, opts.precision))
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	if !opts.histogram {
		return nil
	}
	for _, sel := range selections {
		bins, err := stats.Histogram(sel.points, opts.bins)
		if errors.Is(err, stats.ErrEmpty) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s (%s)\n", sel.name, sel.unit)
		if err := render.HistogramChart(out, bins, opts.precision, mode); err != nil {
			return err
		}
	}
	return nil
}

var seriesCmd = &cobra.Command{
	Use:   "series LOG",
	Short: "List the REPORT series found in a log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := loadLog(args[0])
		if err != nil {
			return err
		}
		set := report.Extract(log)

		width := len("series")
		for _, name := range set.Names() {
			width = max(width, len(name))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-*s  %-4s  %6s  %s\n", width, "series", "unit", "points", "first..last (ms)")
		for _, name := range set.Names() {
			series, _ := set.Get(name)
			first, last := series.Points[0].Timestamp, series.Points[len(series.Points)-1].Timestamp
			fmt.Fprintf(out, "%-*s  %-4s  %6d  %s..%s\n", width, name, series.Unit, len(series.Points),
				stats.Format(first, cfg.Precision), stats.Format(last, cfg.Precision))
		}
		return nil
	},
}
