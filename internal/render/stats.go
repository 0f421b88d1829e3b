package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chunklog/pkg/report"
	"chunklog/pkg/stats"
)

// SeriesStats is the summary of one series, or of several merged series.
type SeriesStats struct {
	Name    string
	Unit    report.Unit
	Summary stats.Summary
}

var statsHeaders = []string{"series", "count", "min", "median", "mean", "max", "variance"}

func (s SeriesStats) cells(precision int) []string {
	sum := s.Summary.Round(precision)
	return []string{
		s.Name,
		strconv.Itoa(sum.Count),
		stats.Format(sum.Min, precision),
		stats.Format(sum.Median, precision),
		stats.Format(sum.Mean, precision),
		stats.Format(sum.Max, precision),
		stats.Format(sum.Variance, precision),
	}
}

// StatsTable writes an aligned table of rows to w.
func StatsTable(w io.Writer, rows []SeriesStats, precision int, mode ColorMode) error {
	r := NewRenderer(w, mode)
	headerStyle := r.NewStyle().Bold(true)
	nameStyle := r.NewStyle().Foreground(lipgloss.Color("6"))

	table := [][]string{statsHeaders}
	for _, row := range rows {
		table = append(table, row.cells(precision))
	}

	widths := make([]int, len(statsHeaders))
	for _, cells := range table {
		for i, cell := range cells {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for rowIdx, cells := range table {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			// names are left aligned, numbers right aligned
			style := r.NewStyle().Width(widths[i])
			if i > 0 {
				style = style.Align(lipgloss.Right)
			}
			switch {
			case rowIdx == 0:
				style = style.Inherit(headerStyle)
			case i == 0:
				style = style.Inherit(nameStyle)
			}
			b.WriteString(style.Render(cell))
		}
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write stats table: %w", err)
	}
	return nil
}

// histogramWidth is the length of the longest bar.
const histogramWidth = 40

// HistogramChart writes one line per bin with a bar proportional to its count.
func HistogramChart(w io.Writer, bins []stats.Bin, precision int, mode ColorMode) error {
	r := NewRenderer(w, mode)
	barStyle := r.NewStyle().Foreground(lipgloss.Color("4"))

	labels := make([]string, len(bins))
	labelWidth := 0
	for i, bin := range bins {
		labels[i] = fmt.Sprintf("[%s, %s)", stats.Format(bin.Lo, precision), stats.Format(bin.Hi, precision))
		if i == len(bins)-1 {
			labels[i] = strings.TrimSuffix(labels[i], ")") + "]"
		}
		labelWidth = max(labelWidth, len(labels[i]))
	}

	peak := stats.MaxCount(bins)
	var b strings.Builder
	for i, bin := range bins {
		bar := 0
		if peak > 0 {
			bar = bin.Count * histogramWidth / peak
		}
		if bin.Count > 0 && bar == 0 {
			bar = 1
		}
		fmt.Fprintf(&b, "%-*s %s %d\n", labelWidth, labels[i], barStyle.Render(strings.Repeat("█", bar)), bin.Count)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write histogram: %w", err)
	}
	return nil
}

// StatsMarkdown renders rows as a markdown table.
func StatsMarkdown(rows []SeriesStats, precision int) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(statsHeaders, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(statsHeaders)) + "\n")
	for _, row := range rows {
		cells := row.cells(precision)
		for i, cell := range cells {
			cells[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}
