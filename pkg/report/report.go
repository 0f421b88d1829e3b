// Package report extracts named timing series from "REPORT <name> <value><unit>" lines
// found in captured output.
package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"chunklog/pkg/outputlog"
)

// Keyword is the first token of a report line.
const Keyword = "REPORT"

// Unit is the unit suffix of a reported value.
type Unit string

const (
	UnitMilliseconds Unit = "ms"
	UnitMicroseconds Unit = "us"
	UnitNanoseconds  Unit = "ns"
	UnitSeconds      Unit = "s"
)

// Scale factors applied to a reported value, by unit. They reproduce the behavior of
// the log viewer this format comes from: microseconds and nanoseconds are multiplied
// rather than divided, and seconds are divided, so only millisecond values come out in
// milliseconds.
const (
	ScaleMilliseconds = 1.0
	ScaleMicroseconds = 1000.0
	ScaleNanoseconds  = 1000000.0
	ScaleSeconds      = 0.001
)

// units in detection order. "ms", "us" and "ns" all contain "s", so "s" goes last.
var units = []struct {
	unit  Unit
	scale float64
}{
	{UnitMilliseconds, ScaleMilliseconds},
	{UnitMicroseconds, ScaleMicroseconds},
	{UnitNanoseconds, ScaleNanoseconds},
	{UnitSeconds, ScaleSeconds},
}

// numberPattern accepts plain decimal numbers with an optional exponent. It keeps out
// what strconv.ParseFloat would also take: NaN, Inf, hex floats and digit separators.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Scale returns the factor applied to values reported in u.
func Scale(u Unit) (float64, bool) {
	for _, candidate := range units {
		if candidate.unit == u {
			return candidate.scale, true
		}
	}
	return 0, false
}

// Event is one parsed report line.
type Event struct {
	Name  string
	Value float64 // scaled
	Unit  Unit
}

// ParseLine parses a single report line. Lines that are not reports, lack a unit or
// have no finite decimal number are rejected.
func ParseLine(line string) (Event, bool) {
	tokens := strings.Split(line, " ")
	if len(tokens) < 3 || tokens[0] != Keyword {
		return Event{}, false
	}
	name, value := tokens[1], tokens[2]

	for _, candidate := range units {
		idx := strings.Index(value, string(candidate.unit))
		if idx == -1 {
			continue
		}
		digits := strings.TrimSpace(value[:idx])
		if !numberPattern.MatchString(digits) {
			return Event{}, false
		}
		number, err := strconv.ParseFloat(digits, 64)
		if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
			return Event{}, false
		}
		return Event{Name: name, Value: number * candidate.scale, Unit: candidate.unit}, true
	}
	return Event{}, false
}

// Point is one measurement of a series.
type Point struct {
	Timestamp float64 // capture timestamp of the chunk the report came from
	Value     float64
}

// Series is the ordered list of measurements reported under one name.
type Series struct {
	Name   string
	Unit   Unit // unit of the first report
	Points []Point
}

// Values returns the value component of every point.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Set holds series by name and remembers the order names were first seen in.
type Set struct {
	names  []string
	series map[string]*Series
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{series: make(map[string]*Series)}
}

// Add appends a point for ev, creating the series on first sight.
func (s *Set) Add(timestamp float64, ev Event) {
	series, ok := s.series[ev.Name]
	if !ok {
		series = &Series{Name: ev.Name, Unit: ev.Unit}
		s.series[ev.Name] = series
		s.names = append(s.names, ev.Name)
	}
	series.Points = append(series.Points, Point{Timestamp: timestamp, Value: ev.Value})
}

// Names returns the series names in first-seen order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of series.
func (s *Set) Len() int {
	return len(s.names)
}

// Get returns the series called name.
func (s *Set) Get(name string) (*Series, bool) {
	series, ok := s.series[name]
	return series, ok
}

// Points concatenates the points of the named series, in the order given. Unknown
// names are skipped. With no names, every series is included.
func (s *Set) Points(names ...string) []Point {
	if len(names) == 0 {
		names = s.names
	}
	var points []Point
	for _, name := range names {
		if series, ok := s.series[name]; ok {
			points = append(points, series.Points...)
		}
	}
	return points
}

// Extract scans every chunk of log for report lines. Points are appended in chunk
// order; a chunk holding several lines contributes one point per report line.
func Extract(log outputlog.Log) *Set {
	set := NewSet()
	for _, chunk := range log {
		text := strings.ToValidUTF8(string(chunk.Payload), "\uFFFD")
		for _, line := range strings.Split(text, "\n") {
			if ev, ok := ParseLine(line); ok {
				set.Add(chunk.Timestamp, ev)
			}
		}
	}
	return set
}
