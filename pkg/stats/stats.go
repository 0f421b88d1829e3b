// Package stats computes descriptive statistics and histograms over report series.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"chunklog/pkg/report"
)

const (
	// DefaultPrecision is the number of decimals summaries are rounded to for display.
	DefaultPrecision = 3
	// DefaultBins is the histogram bin count used when none is given.
	DefaultBins = 20
)

// ErrEmpty is returned when there are no points to summarize.
var ErrEmpty = errors.New("no data points")

// Summary describes one set of values.
type Summary struct {
	Count    int
	Min      float64
	Median   float64
	Mean     float64
	Max      float64
	Variance float64 // sample variance; 0 for a single point
}

// Compute summarizes the values of points. The input is not modified.
func Compute(points []report.Point) (Summary, error) {
	if len(points) == 0 {
		return Summary{}, ErrEmpty
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sort.Float64s(values)

	n := len(values)
	s := Summary{
		Count: n,
		Min:   values[0],
		Max:   values[n-1],
	}

	if n%2 == 1 {
		s.Median = values[n/2]
	} else {
		s.Median = (values[n/2-1] + values[n/2]) / 2
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	s.Mean = sum / float64(n)

	if n > 1 {
		var squares float64
		for _, v := range values {
			d := v - s.Mean
			squares += d * d
		}
		s.Variance = squares / float64(n-1)
	}

	return s, nil
}

// Round returns a copy of s with every statistic rounded to precision decimals.
// A negative precision is treated as 0.
func (s Summary) Round(precision int) Summary {
	if precision < 0 {
		precision = 0
	}
	s.Min = round(s.Min, precision)
	s.Median = round(s.Median, precision)
	s.Mean = round(s.Mean, precision)
	s.Max = round(s.Max, precision)
	s.Variance = round(s.Variance, precision)
	return s
}

func round(v float64, precision int) float64 {
	factor := math.Pow(10, float64(precision))
	return math.Round(v*factor) / factor
}

// Format renders v with precision decimals.
func Format(v float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return fmt.Sprintf("%.*f", precision, v)
}

// Filter returns the points whose timestamp lies within [from, to].
func Filter(points []report.Point, from, to float64) []report.Point {
	var out []report.Point
	for _, p := range points {
		if from <= p.Timestamp && p.Timestamp <= to {
			out = append(out, p)
		}
	}
	return out
}

// Bin is one histogram bucket. Values v with Lo <= v < Hi are counted, except in the
// last bin which also includes Hi.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram buckets the values of points into n equal-width bins spanning
// [min*0.9, max*1.1]. n <= 0 selects DefaultBins.
func Histogram(points []report.Point, n int) ([]Bin, error) {
	if len(points) == 0 {
		return nil, ErrEmpty
	}
	if n <= 0 {
		n = DefaultBins
	}

	min, max := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		min = math.Min(min, p.Value)
		max = math.Max(max, p.Value)
	}

	lo, hi := min*0.9, max*1.1
	if lo > hi {
		lo, hi = hi, lo
	}
	width := (hi - lo) / float64(n)

	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi

	for _, p := range points {
		idx := 0
		if width > 0 {
			idx = int(math.Floor((p.Value - lo) / width))
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}

	return bins, nil
}

// MaxCount returns the largest bin count.
func MaxCount(bins []Bin) int {
	max := 0
	for _, b := range bins {
		if b.Count > max {
			max = b.Count
		}
	}
	return max
}
